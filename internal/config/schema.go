// Package config handles loading, validating and saving the subscription
// schedule document watched by idrsched.
package config

// Config is the top-level configuration document. Field order is the order
// in which Save writes the document.
type Config struct {
	// AccessServer is the host name of the replication access server.
	AccessServer string `yaml:"accessServer"`

	// Port is the access server port, kept as text the way operators write it.
	Port string `yaml:"port"`

	// UserID is the access server login.
	UserID string `yaml:"userId"`

	// Password is the sealed access server password. It is only unsealed
	// at the moment a firing connects.
	Password string `yaml:"password"`

	// Subscriptions lists the monitored subscriptions in file order.
	Subscriptions []Subscription `yaml:"subscriptions"`
}

// Subscription describes one replication subscription kept running on a
// cron schedule.
type Subscription struct {
	// ID uniquely identifies the subscription within the document and keys
	// its trigger.
	ID string `yaml:"subscriptionId"`

	// Name is the subscription name on the source data store.
	Name string `yaml:"subscriptionName"`

	// SourceDataStore is the publisher data store that owns the subscription.
	SourceDataStore string `yaml:"sourceDataStore"`

	// CronPattern is the cron expression that drives the check.
	CronPattern string `yaml:"cronPattern"`

	// LoaderClass names the reconciliation strategy run on each firing.
	LoaderClass string `yaml:"loaderClass"`

	// Enabled subscriptions are scheduled; disabled ones are ignored.
	Enabled bool `yaml:"enabled"`
}
