package storage

import (
	"github.com/navikt/meraki-connect/pkg/service"
)

type Stores struct {
	SessionStorage service.SessionStorage
}

func NewStores(sessionStorage service.SessionStorage) *Stores {
	return &Stores{
		SessionStorage: sessionStorage,
	}
}
