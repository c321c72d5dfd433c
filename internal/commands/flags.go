// Package commands собирает команды терминального клиента serviceflow.
package commands

import (
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/serviceflow/internal/client"
)

// Flags: глобальные флаги и собранные из них зависимости, общие для всех команд.
type Flags struct {
	APIURL          string
	Backend         string
	CredentialsPath string
	Timeout         time.Duration
	MockLatency     time.Duration
	LogLevel        string

	// Заполняются в Before; заранее заданные значения не перезаписываются.
	Tokens client.TokenStore
	Access client.OrderAccess
	// Auth доступен только для http backend.
	Auth *client.AuthClient
}

// DefaultCredentialsPath возвращает путь к файлу с токеном или пустую строку,
// если каталог конфигурации пользователя не определён.
func DefaultCredentialsPath() string {
	path, err := client.DefaultCredentialsPath()
	if err != nil {
		return ""
	}
	return path
}

// Setup создаёт хранилище токена и клиент выбранного backend.
func (f *Flags) Setup(now time.Time) error {
	if f.Tokens == nil {
		if f.CredentialsPath == "" {
			return fmt.Errorf("credentials path is not set (use --credentials)")
		}
		f.Tokens = client.NewFileTokenStore(f.CredentialsPath)
	}
	if f.Access != nil {
		return nil
	}

	if f.Backend == "" || f.Backend == client.BackendHTTP {
		api := client.NewHTTPClient(f.APIURL, f.Tokens, client.WithTimeout(f.Timeout))
		f.Access = api
		f.Auth = client.NewAuthClient(api)
		return nil
	}

	access, err := client.New(client.Config{
		Backend:     f.Backend,
		MockLatency: f.MockLatency,
		MockSeed:    client.SampleOrders(now),
	})
	if err != nil {
		return err
	}
	f.Access = access
	return nil
}

func (f *Flags) session() (*client.Session, error) {
	if f.Auth == nil {
		return nil, fmt.Errorf("authentication requires the %s backend", client.BackendHTTP)
	}
	return client.NewSession(f.Auth), nil
}
