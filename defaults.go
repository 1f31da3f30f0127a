package soa

var (
	defaultLoggerName = "soa"
	defaultDotenvFile = ".env"
	defaultConfigFile = "etc/soa.yaml"
)

func DefaultLoggerName() string {
	return defaultLoggerName
}

func DefaultDotenvFile() string {
	return defaultDotenvFile
}

func DefaultConfigFile() string {
	return defaultConfigFile
}

// DefaultOption reads defaultDotenvFile and defaultConfigFile on top of the
// environment.
func DefaultOption() *Option {
	return &Option{
		DotenvFile: defaultDotenvFile,
		ConfigFile: defaultConfigFile,
	}
}
