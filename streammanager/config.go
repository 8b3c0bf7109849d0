package streammanager

type configGetter interface {
	GetStreamManager() Config
}

type Config struct {
	// PlanTTLSec how long a resolved plan stays available for lookup
	PlanTTLSec int `yaml:"planTTLSec"`
	// GCPeriodSec how often the registry collects resolved plans
	GCPeriodSec int `yaml:"gcPeriodSec"`
}

func defaultConfig() Config {
	return Config{
		PlanTTLSec:  300,
		GCPeriodSec: 60,
	}
}
