// Package core provides the core command and server functionality for
// photariumd.
package core

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/photarium/photarium/src/common/cli"
	"github.com/photarium/photarium/src/common/logs"
	"github.com/photarium/photarium/src/common/version"
	"github.com/photarium/photarium/src/photariumd/api"
)

var (
	// VersionInfo holds version information - set at build time via ldflags
	VersionInfo = version.New()

	// Global logger instance
	log *logs.Logger

	// Configuration file path
	cfgFile string
)

// Linker variables - these are set via ldflags at build time
// They must be initialized as empty strings or literals for ldflags to work
var (
	Version        = "dev"
	ReleaseName    = "Aperture"
	ReleaseVersion = "0.0.0"
	BuildDate      = "unknown"
	GitCommit      = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "photariumd",
	Short: "Photarium Gallery API Server",
	Long: `photariumd is the gallery API server for the Photarium platform.

It manages nested photo albums backed by pluggable storage providers
(local disk, an OAuth drive, and S3-compatible object stores), with
group-based visibility controls and JWT authentication.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

// Execute runs the root command
func Execute() {
	// Populate VersionInfo from linker variables
	VersionInfo.Version = Version
	VersionInfo.ReleaseName = ReleaseName
	VersionInfo.ReleaseVersion = ReleaseVersion
	VersionInfo.BuildDate = BuildDate
	VersionInfo.GitCommit = GitCommit

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Configuration file flag
	cli.RegisterConfigFlag(rootCmd, &cfgFile, "/etc/photarium/photariumd.yaml")

	// Server flags
	rootCmd.Flags().IntP("port", "p", 8443, "Port to listen on")
	rootCmd.Flags().StringP("bind", "b", "0.0.0.0", "Address to bind to")

	// Logging flags (using common helper)
	cli.RegisterLogFlags(rootCmd)

	// Database flags
	rootCmd.Flags().String("db-path", "~/.photariumd/photarium.db", "Path to persist database on shutdown")

	// Local storage flags
	rootCmd.Flags().String("local-path", "~/.photariumd/photos", "Base path for the local storage provider")

	// TLS flags
	rootCmd.Flags().Bool("tls-enabled", false, "Enable native HTTPS/TLS support")
	rootCmd.Flags().String("tls-cert", "", "Path to TLS certificate file (PEM)")
	rootCmd.Flags().String("tls-key", "", "Path to TLS private key file (PEM)")

	// Bind flags to viper
	_ = viper.BindPFlag("server.port", rootCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.bind", rootCmd.Flags().Lookup("bind"))
	_ = viper.BindPFlag("database.path", rootCmd.Flags().Lookup("db-path"))
	_ = viper.BindPFlag("storage.local.path", rootCmd.Flags().Lookup("local-path"))
	_ = viper.BindPFlag("server.tls.enabled", rootCmd.Flags().Lookup("tls-enabled"))
	_ = viper.BindPFlag("server.tls.cert_path", rootCmd.Flags().Lookup("tls-cert"))
	_ = viper.BindPFlag("server.tls.key_path", rootCmd.Flags().Lookup("tls-key"))

	// Set defaults
	viper.SetDefault("server.port", 8443)
	viper.SetDefault("server.bind", "0.0.0.0")
	viper.SetDefault("database.path", "~/.photariumd/photarium.db")
	viper.SetDefault("storage.local.path", "~/.photariumd/photos")

	// Security defaults
	rateDefaults := api.DefaultRateLimitConfig()
	viper.SetDefault("security.rate_limit.enabled", rateDefaults.Enabled)
	viper.SetDefault("security.rate_limit.auth_per_min", rateDefaults.AuthRequestsPerMin)
	viper.SetDefault("security.rate_limit.api_per_min", rateDefaults.APIRequestsPerMin)
	viper.SetDefault("security.rate_limit.file_per_min", rateDefaults.FileRequestsPerMin)
	viper.SetDefault("security.rate_limit.trust_proxy", rateDefaults.TrustProxy)
	viper.SetDefault("security.master_key_path", "~/.photariumd/master.key")

	// TLS defaults
	viper.SetDefault("server.tls.enabled", false)
	viper.SetDefault("server.tls.cert_path", "")
	viper.SetDefault("server.tls.key_path", "")
}

// initConfig reads in config file and ENV variables if set
func initConfig() error {
	opts := cli.ConfigOptions{
		ConfigName: "photariumd",
		ConfigType: "yaml",
		EnvPrefix:  "PHOTARIUM",
		SearchPaths: []string{
			"/etc/photarium",
			"/opt/photarium",
			"~/.photariumd",
		},
	}
	opts.ConfigFile = cfgFile

	if err := cli.InitConfig(opts); err != nil {
		return err
	}

	// Initialize logger using common helper
	log = cli.InitLogger("photariumd")

	return nil
}
