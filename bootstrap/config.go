package bootstrap

import (
	"github.com/kbukum/tablemut/config"
)

// Config is satisfied by any struct that embeds config.ServiceConfig.
// Embedders may override ApplyDefaults and Validate to cover their own
// sections.
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}
