// cmd/server/commands.go
package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"led-relay/internal/config"
	"led-relay/internal/discovery"
	"led-relay/internal/utils"
)

// cli holds state shared by every subcommand
type cli struct {
	v          *viper.Viper
	configFile string
}

// newRootCmd builds the command tree
func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "led-relay",
		Short: "Relay single-character commands to a serial LED controller",
		Long: `led-relay drives a microcontroller attached over a serial line.

It serves an HTTP API that validates single-character commands and forwards
them to the device, reconnecting and retrying when the line drops.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&c.configFile, "config", "c", "", "config file (default: ./config.yaml, ./config/config.yaml or /etc/led-relay/config.yaml)")
	rootCmd.PersistentFlags().StringP("device", "d", "", "serial device address, e.g. /dev/ttyACM0")
	rootCmd.PersistentFlags().IntP("baud", "b", 0, "serial baud rate")
	rootCmd.PersistentFlags().Bool("auto-detect", false, "pick a serial port automatically when the configured one is missing")

	c.v.BindPFlag("device.address", rootCmd.PersistentFlags().Lookup("device"))
	c.v.BindPFlag("device.baud_rate", rootCmd.PersistentFlags().Lookup("baud"))
	c.v.BindPFlag("device.auto_detect", rootCmd.PersistentFlags().Lookup("auto-detect"))

	rootCmd.AddCommand(c.newServeCmd(), c.newPortsCmd(), c.newSendCmd())
	return rootCmd
}

func (c *cli) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWith(c.v, c.configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// cliLogger logs warnings and errors to stderr so command output stays clean
func cliLogger() (*zap.Logger, error) {
	return utils.NewLogger(&config.LoggingConfig{
		Level:  "warn",
		Format: "console",
		Output: "stderr",
	})
}

func (c *cli) newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP relay",
		Long: `Run the HTTP API and connect to the configured serial device.

The device is opened at startup. If it is missing, the service still starts
and the first command retries the connection.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}

			app, err := NewApplication(cfg)
			if err != nil {
				return err
			}
			return app.Start()
		},
	}
}

func (c *cli) newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports",
		Long: `List serial ports on this host with USB details where available.

The port marked with * is the one auto-detect would choose.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := cliLogger()
			if err != nil {
				return err
			}
			defer utils.CloseLogger(logger)

			scanner := discovery.NewScanner(logger)
			ports, err := scanner.ListPorts()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(ports) == 0 {
				fmt.Fprintln(out, "No serial ports found")
				return nil
			}

			preferred, _ := scanner.FindPort(c.v.GetString("device.address"))
			for _, port := range ports {
				fmt.Fprintln(out, formatPort(port, port.Name == preferred))
			}
			return nil
		},
	}
}

func formatPort(port discovery.PortInfo, preferred bool) string {
	var b strings.Builder

	if preferred {
		b.WriteString("* ")
	} else {
		b.WriteString("  ")
	}
	b.WriteString(port.Name)

	if port.IsUSB {
		fmt.Fprintf(&b, "  usb %s:%s", port.VID, port.PID)
		if port.SerialNumber != "" {
			fmt.Fprintf(&b, " serial=%s", port.SerialNumber)
		}
		if port.Product != "" {
			fmt.Fprintf(&b, " %q", port.Product)
		}
	}
	return b.String()
}

func (c *cli) newSendCmd() *cobra.Command {
	var readTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "send <command>",
		Short: "Send one command to the device and exit",
		Long: `Send a single-character command to the device without starting the server.

The same validation, reconnect and retry rules as the HTTP API apply.

Examples:
  led-relay send a
  led-relay send x --device /dev/ttyUSB0
  led-relay send c --read 2s`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}

			logger, err := cliLogger()
			if err != nil {
				return err
			}
			defer utils.CloseLogger(logger)

			gateway := newGateway(cfg, logger, discovery.NewScanner(logger), nil)
			defer gateway.Teardown()

			if err := gateway.SendCommand(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Command sent: %s\n", args[0])

			if readTimeout > 0 {
				response, ok := gateway.ReadResponse(readTimeout)
				if !ok {
					return fmt.Errorf("no response from device")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Response: %s\n", response)
			}
			return nil
		},
	}

	cmd.Flags().DurationVarP(&readTimeout, "read", "r", 0, "read one response line with this timeout after sending")
	return cmd
}
