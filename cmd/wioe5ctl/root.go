package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"i4.energy/across/wioe5/modem"
)

var (
	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "wioe5ctl",
		Short: "talk to a Wio-E5 LoRaWAN module",
		Long: `wioe5ctl drives a Wio-E5 module over its serial AT interface.

Every flag can also be set through a WIOE5_ prefixed environment variable,
for example WIOE5_SERIAL_PORT=/dev/ttyACM0. Values in .env and .env.local
are loaded first.`,
		SilenceUsage:      true,
		PersistentPreRunE: bindFlags,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.AddCommand(probeCmd)
	RootCmd.AddCommand(sendCmd)
	RootCmd.AddCommand(execCmd)

	key := "serial-port"
	RootCmd.PersistentFlags().String(key, "/dev/ttyUSB0", "serial port the module is attached to")
	key = "baud-rate"
	RootCmd.PersistentFlags().Int(key, 9600, "baud rate of the serial port")
	key = "band"
	RootCmd.PersistentFlags().String(key, "EU868", "LoRaWAN band (EU868, US915)")
	key = "dev-eui"
	RootCmd.PersistentFlags().String(key, "", "OTAA DevEUI, keeps the stored value if empty")
	key = "app-eui"
	RootCmd.PersistentFlags().String(key, "", "OTAA AppEUI, keeps the stored value if empty")
	key = "app-key"
	RootCmd.PersistentFlags().String(key, "", "OTAA AppKey, keeps the stored value if empty")
	key = "reset-on-dtr"
	RootCmd.PersistentFlags().Bool(key, false, "pulse the module reset pin through the DTR line")
	key = "verbose"
	RootCmd.PersistentFlags().BoolP(key, "v", false, "mirror the serial traffic to stderr")
}

// initConfig initializes configuration from env files and the environment
func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("wioe5")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func bindFlags(cmd *cobra.Command, _ []string) error {
	return viper.BindPFlags(cmd.Flags())
}

// connect returns the Dialer and Clock commands reach the module through.
// A nil Clock selects the system clock.
var connect = func() (modem.Dialer, modem.Clock) {
	return modem.SerialDialer{
		PortName: viper.GetString("serial-port"),
		BaudRate: viper.GetInt("baud-rate"),
	}, nil
}

// modemConfig builds the modem configuration from the bound flags.
func modemConfig(dialer modem.Dialer, clock modem.Clock) (modem.Config, error) {
	level := slog.LevelWarn
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	builder := modem.NewConfigBuilder().
		WithBand(modem.Band(strings.ToUpper(viper.GetString("band")))).
		WithCredentials(viper.GetString("dev-eui"), viper.GetString("app-eui"), viper.GetString("app-key")).
		WithResetOnDTR(viper.GetBool("reset-on-dtr")).
		WithLogger(logger).
		WithClock(clock).
		WithDialer(dialer)
	if viper.GetBool("verbose") {
		builder = builder.WithSink(modem.WriterSink(os.Stderr, clock))
	}
	return builder.Build()
}

// openModem opens the port without running the setup sequence.
func openModem(ctx context.Context) (*modem.Modem, error) {
	config, err := modemConfig(connect())
	if err != nil {
		return nil, err
	}
	return modem.Open(ctx, config)
}

// startModem opens the port and runs the full setup sequence.
func startModem(ctx context.Context) (*modem.Modem, error) {
	config, err := modemConfig(connect())
	if err != nil {
		return nil, err
	}
	return modem.New(ctx, config)
}

func commandContext(cmd *cobra.Command, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, timeout)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
