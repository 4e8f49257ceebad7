// Command dlmsclient is a thin CLI over the client package: it resolves a
// config.ClientSettings from flags/environment/file, dials a TCP gateway,
// and runs one association-scoped operation before disconnecting.
package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/dlms-go/dlmscosem/apdu"
	"github.com/dlms-go/dlmscosem/client"
	"github.com/dlms-go/dlmscosem/config"
	"github.com/dlms-go/dlmscosem/xdr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile   string
	host      string
	port      int
	obisArg   string
	classID   int
	attribute int
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "dlmsclient",
		Short: "Exercise a DLMS/COSEM association against a meter or gateway",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&host, "host", "", "gateway host (overrides config)")
	root.PersistentFlags().IntVar(&port, "port", 0, "gateway port (overrides config)")
	_ = viper.BindPFlag("host", root.PersistentFlags().Lookup("host"))

	root.AddCommand(newGetCmd(), newClockCmd())
	return root
}

func newGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Read a single COSEM attribute",
		RunE:  runGet,
	}
	cmd.Flags().StringVar(&obisArg, "obis", "", "OBIS code, e.g. 1.0.1.8.0.255")
	cmd.Flags().IntVar(&classID, "class", 0, "COSEM class-id")
	cmd.Flags().IntVar(&attribute, "attribute", 2, "attribute index")
	_ = cmd.MarkFlagRequired("obis")
	_ = cmd.MarkFlagRequired("class")
	return cmd
}

func newClockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clock",
		Short: "Read the meter's clock (class 8, attribute 2, OBIS 0.0.1.0.0.255)",
		RunE:  runClock,
	}
	return cmd
}

func withSession(f func(s *client.Session) error) error {
	cs, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if host != "" {
		cs.Host = host
	}
	if port != 0 {
		cs.Port = port
	}

	settings, err := cs.Resolve()
	if err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("dlmsclient: building logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	transport := newTCPStream(cs.Host, cs.Port, cs.DialTimeout)
	session := client.NewSession(transport, settings)
	session.SetLogger(logger.Sugar())

	if err := session.Connect(); err != nil {
		return fmt.Errorf("dlmsclient: connect: %w", err)
	}
	defer session.Disconnect() //nolint:errcheck

	if err := session.Authenticate(true); err != nil {
		return fmt.Errorf("dlmsclient: authenticate: %w", err)
	}

	return f(session)
}

func runGet(cmd *cobra.Command, args []string) error {
	obis, err := xdr.ParseObis(obisArg)
	if err != nil {
		return fmt.Errorf("dlmsclient: invalid obis %q: %w", obisArg, err)
	}

	return withSession(func(s *client.Session) error {
		d := apdu.GetDescriptor{
			ClassID:   uint16(classID),
			Obis:      obis,
			Attribute: int8(attribute),
		}
		value, err := s.Get(d, nil)
		if err != nil {
			return err
		}
		fmt.Printf("%s\n", formatData(value))
		return nil
	})
}

func runClock(cmd *cobra.Command, args []string) error {
	return withSession(func(s *client.Session) error {
		dt, err := s.ReadClock(client.ClockObis)
		if err != nil {
			return err
		}
		fmt.Printf("%s\n", dt.String())
		return nil
	})
}

func formatData(d xdr.Data) string {
	if b, ok := d.Value.([]byte); ok {
		return hex.EncodeToString(b)
	}
	return fmt.Sprintf("%v", d.Value)
}
