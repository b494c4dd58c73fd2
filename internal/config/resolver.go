package config

// Enabled returns the enabled subscriptions in file order.
func Enabled(cfg *Config) []Subscription {
	subs := make([]Subscription, 0, len(cfg.Subscriptions))
	for _, s := range cfg.Subscriptions {
		if s.Enabled {
			subs = append(subs, s)
		}
	}
	return subs
}
