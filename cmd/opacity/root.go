package main

import (
	"fmt"
	"io"
	"os"

	"github.com/99designs/keyring"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Mavahu/opacity-go/config"
	"github.com/Mavahu/opacity-go/network"
	"github.com/Mavahu/opacity-go/secretstore"
)

// app carries the state shared by every command. Tests fill store and
// broker before executing the root command.
type app struct {
	cfg      config.Config
	log      *logrus.Logger
	logClose io.Closer

	store  secretstore.Store
	broker network.Broker
	stdout io.Writer

	// flags
	dataDir     string
	brokerURL   string
	verbose     bool
	debug       bool
	noProgress  bool
	maxUploads  int
	maxDownload int

	closed bool
}

func (a *app) close() {
	if a.closed {
		return
	}
	a.closed = true
	if a.logClose != nil {
		a.logClose.Close()
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "opacity",
		Short: "Opacity - end-to-end encrypted file storage from the command line.",
		Long: `Opacity stores files encrypted on the client. Folder listings are
encrypted documents keyed by a secret derived from your account handle, so
the broker never sees names, sizes or contents.

Usage:
  opacity <command> [flags]

Run 'opacity help <command>' for more details on a specific command.
`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.stdout = cmd.OutOrStdout()
			return a.setup()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.dataDir, "data-dir", "", "directory holding config, journal and scratch files")
	flags.StringVar(&a.brokerURL, "broker", "", "broker API root URL")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "enable verbose output")
	flags.BoolVarP(&a.debug, "debug", "d", false, "enable debug output")
	flags.BoolVar(&a.noProgress, "no-progress", false, "disable the progress spinner")
	flags.IntVar(&a.maxUploads, "max-uploads", 0, "files uploaded at once")
	flags.IntVar(&a.maxDownload, "max-downloads", 0, "files downloaded at once")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newAccountCmd(a),
		newListCmd(a),
		newMkdirCmd(a),
		newUploadCmd(a),
		newDownloadCmd(a),
		newRemoveCmd(a),
		newMoveCmd(a),
		newRenameCmd(a),
		newReconcileCmd(a),
		newConfigCmd(a),
	)
	return root
}

// setup loads the settings file, applies environment and flag overrides and
// builds the logger. Flags win over the environment, which wins over the file.
func (a *app) setup() error {
	env := config.Environ()

	dataDir := config.DefaultDataDir()
	if v := env[config.EnvDataDir]; v != "" {
		dataDir = v
	}
	if a.dataDir != "" {
		dataDir = a.dataDir
	}

	cfg, err := config.LoadOrDefault(config.ConfigPath(dataDir))
	if err != nil {
		return err
	}
	config.ApplyEnv(&cfg, env)
	cfg.DataDir = dataDir
	if a.brokerURL != "" {
		cfg.BrokerURL = a.brokerURL
	}
	if a.maxUploads > 0 {
		cfg.MaxUploads = a.maxUploads
	}
	if a.maxDownload > 0 {
		cfg.MaxDownloads = a.maxDownload
	}
	if a.debug {
		cfg.LogLevel = "debug"
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return err
	}

	log, closer, err := config.NewLogger(cfg)
	if err != nil {
		return err
	}
	if !a.verbose && !a.debug && cfg.LogFile == "" {
		// The terminal belongs to the progress output.
		log.SetOutput(io.Discard)
	}
	a.cfg, a.log, a.logClose = cfg, log, closer

	if a.store == nil {
		a.store = a.keyringStore()
	}
	log.WithFields(logrus.Fields{
		"data_dir": cfg.DataDir,
		"broker":   cfg.BrokerURL,
	}).Debug("configuration loaded")
	return nil
}

func (a *app) keyringStore() secretstore.Store {
	kc := secretstore.KeyringConfig{FileDir: a.cfg.KeyringDir()}
	if a.cfg.KeyringBackend != "" {
		kc.Backends = []keyring.BackendType{keyring.BackendType(a.cfg.KeyringBackend)}
	}
	if a.cfg.KeyringBackend == string(keyring.FileBackend) {
		kc.FilePassword = os.Getenv(envKeyringPassword)
	}
	return secretstore.NewKeyringStore(kc)
}

// envKeyringPassword unlocks the file keyring backend without a prompt.
const envKeyringPassword = "OPACITY_KEYRING_PASSWORD"

func (a *app) printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
