package main

import (
	"github.com/sguter90/weatherlog/pkg/config"
	"github.com/sguter90/weatherlog/pkg/pusher"
	"github.com/sguter90/weatherlog/pkg/pusher/ecowitt"
	"github.com/sguter90/weatherlog/pkg/pusher/generic"
	"github.com/sguter90/weatherlog/pkg/pusher/wunderground"
)

// newPusherRegistry registers every supported upload protocol with the
// secrets from cfg
func newPusherRegistry(cfg *config.Config) *pusher.Registry {
	registry := pusher.NewRegistry()
	registry.Register(ecowitt.NewPusher(cfg.EcowittPasskey, cfg.EcowittRequirePasskey))
	registry.Register(wunderground.NewPusher(cfg.StationID, cfg.StationKey, cfg.StationRequireAuth))
	registry.Register(generic.NewPusher(cfg.EcowittPasskey, cfg.EcowittRequirePasskey))
	return registry
}
