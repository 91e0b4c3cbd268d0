package registry

import (
	"fmt"

	"jobradar/pkg/providers"
	"jobradar/pkg/proxy"
)

// Build constructs a provider from one config entry.
func Build(config providers.SourceConfig, proxies *proxy.Manager) (providers.Provider, error) {
	switch config.Provider {
	case "usajobs":
		return providers.NewUSAJobsProvider(config), nil
	case "jsearch":
		return providers.NewJSearchProvider(config), nil
	case "remotive":
		return providers.NewRemotiveProvider(config), nil
	case "remoteok":
		return providers.NewRemoteOKProvider(config), nil
	case "gradcircle":
		return providers.NewGradCircleProvider(config), nil
	case "rssfeed":
		return providers.NewRSSFeedProvider(config), nil
	case "campus":
		return providers.NewCampusProvider(config, proxies), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %s", config.Provider)
	}
}

// RegisterAll builds and registers every enabled source from the config.
func RegisterAll(r *Registry, configs []providers.SourceConfig, proxies *proxy.Manager) error {
	for _, config := range configs {
		if !config.Enabled {
			continue
		}

		p, err := Build(config, proxies)
		if err != nil {
			return fmt.Errorf("failed to build source %s: %w", config.Name, err)
		}
		if err := r.Register(p); err != nil {
			return fmt.Errorf("failed to register source %s: %w", config.Name, err)
		}
	}
	return nil
}
