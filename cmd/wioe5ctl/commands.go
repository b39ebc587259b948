package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"i4.energy/across/wioe5/at"
)

var (
	// probeCmd checks that a module answers and reports its firmware
	probeCmd = &cobra.Command{
		Use:   "probe",
		Short: "Check that the module answers and print its firmware version",
		Args:  cobra.NoArgs,
		RunE:  runProbe,
	}

	// sendCmd sends one uplink
	sendCmd = &cobra.Command{
		Use:   "send [hex]",
		Short: "Join if needed, send a hex payload and print the downlink",
		Args:  cobra.ExactArgs(1),
		RunE:  runSend,
	}

	// execCmd runs a raw AT command
	execCmd = &cobra.Command{
		Use:   "exec [command]",
		Short: "Run a raw AT command and print the response",
		Long: `Run a raw AT command and print everything the module answered.

The command is terminated with CRLF. The exchange succeeds once the response
contains the --expect marker; without one the command is written and the
response is not awaited.`,
		Example: `  wioe5ctl exec AT+ID --expect "+ID: AppEui"`,
		Args:    cobra.ExactArgs(1),
		RunE:    runExec,
	}
)

func init() {
	sendCmd.Flags().Uint8("port", 0, "application port, 0 keeps the current one")
	sendCmd.Flags().Uint8("data-rate", 0, "data rate to select before sending, 0 keeps the current one")
	sendCmd.Flags().Duration("timeout", 2*time.Minute, "overall time allowed for setup and send")

	execCmd.Flags().String("expect", "", "marker that completes the exchange")
	execCmd.Flags().Duration("wait", time.Second, "how long to wait for the marker")
}

func runProbe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := commandContext(cmd, 30*time.Second)
	defer cancel()

	m, err := openModem(ctx)
	if err != nil {
		return err
	}
	defer m.Close()

	if _, err := m.Exec(ctx, at.CmdAt, at.MarkerAlive, 0); err != nil {
		return fmt.Errorf("module not responding: %w", err)
	}

	resp, err := m.Exec(ctx, at.CmdVersion, at.MarkerVersion, 0)
	if err != nil {
		return fmt.Errorf("read firmware version: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wio-E5 firmware %s\n", at.ParseVersion(resp))
	return nil
}

func runSend(cmd *cobra.Command, args []string) error {
	payload := args[0]
	data := make([]byte, len(payload)/2)
	if len(payload) == 0 || len(payload)%2 != 0 || at.DecodeRun(data, payload, len(data)) != len(data) {
		return errors.New("payload must be a non-empty hex string")
	}

	port := viper.GetUint("port")
	dataRate := viper.GetUint("data-rate")

	ctx, cancel := commandContext(cmd, viper.GetDuration("timeout"))
	defer cancel()

	m, err := startModem(ctx)
	if err != nil {
		return err
	}
	defer m.Close()

	if dataRate != 0 {
		if err := m.SetDataRate(ctx, uint8(dataRate)); err != nil {
			return err
		}
	}
	if port != 0 {
		if err := m.SetPort(ctx, uint8(port)); err != nil {
			return err
		}
	}

	rx := make([]byte, m.MaxPayload())
	d, err := m.SendData(ctx, data, rx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "sent %d bytes, rssi %d\n", len(data), d.RSSI)
	if d.N > 0 {
		fmt.Fprintf(out, "downlink port %d: %s\n", d.Port, at.EncodeHex(rx[:d.N]))
	}
	return nil
}

func runExec(cmd *cobra.Command, args []string) error {
	line := args[0]
	if !strings.HasSuffix(line, at.CRLF) {
		line += at.CRLF
	}

	wait := viper.GetDuration("wait")
	ctx, cancel := commandContext(cmd, wait+10*time.Second)
	defer cancel()

	m, err := openModem(ctx)
	if err != nil {
		return err
	}
	defer m.Close()

	resp, err := m.Exec(ctx, line, viper.GetString("expect"), wait)
	fmt.Fprint(cmd.OutOrStdout(), resp)
	return err
}
