package core

import "github.com/navikt/meraki-connect/pkg/service"

type Services struct {
	AuthService   service.AuthService
	MerakiService service.MerakiService
}

func NewServices(
	authService service.AuthService,
	merakiService service.MerakiService,
) *Services {
	return &Services{
		AuthService:   authService,
		MerakiService: merakiService,
	}
}
