package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"netinventory/internal/codec"
	"netinventory/internal/domain"
	"netinventory/internal/service"
)

type addFlags struct {
	req service.CreateDeviceRequest
}

func (f *addFlags) common(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.req.Model, "model", "", "model")
	cmd.Flags().BoolVar(&f.req.SerialInterface, "serial", false, "device has a serial interface")
	cmd.Flags().StringVar(&f.req.Observations, "observations", "", "free-form notes")
	cmd.Flags().StringVar(&f.req.Status, "status", "", "initial status: ACTIVE or INACTIVE")
}

func (f *addFlags) addressed(cmd *cobra.Command, ipv6 bool) {
	cmd.Flags().StringVar(&f.req.IPv4, "ipv4", "", "IPv4 address")
	if ipv6 {
		cmd.Flags().StringVar(&f.req.IPv6, "ipv6", "", "IPv6 address")
	}
	cmd.Flags().StringVar(&f.req.MACAddress, "mac", "", "MAC address (required)")
}

func newAddCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a device",
	}

	build := func(deviceType, use, short string, setup func(*cobra.Command, *addFlags)) *cobra.Command {
		f := &addFlags{}
		c := &cobra.Command{
			Use:   use + " NAME",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				f.req.Type = deviceType
				f.req.Name = args[0]
				rec, err := a.svc.CreateDevice(cmd.Context(), f.req)
				if err != nil {
					return err
				}
				printf(cmd, "added %s\n", describe(rec))
				return nil
			},
		}
		f.common(c)
		setup(c, f)
		return c
	}

	cmd.AddCommand(
		build(string(domain.DeviceTypeRouter), "router", "Add a router", func(c *cobra.Command, f *addFlags) {
			f.addressed(c, true)
		}),
		build(string(domain.DeviceTypeSwitch), "switch", "Add a switch", func(c *cobra.Command, f *addFlags) {
			f.addressed(c, false)
			c.Flags().IntVar(&f.req.Ports, "ports", 0, "total port count (required)")
			c.Flags().IntVar(&f.req.EthPorts, "eth", 0, "Ethernet ports")
			c.Flags().IntVar(&f.req.FastEthPorts, "fast-eth", 0, "FastEthernet ports")
			c.Flags().IntVar(&f.req.GigaEthPorts, "giga-eth", 0, "GigabitEthernet ports")
		}),
		build(string(domain.DeviceTypeAccessPoint), "ap", "Add a wireless access point", func(c *cobra.Command, f *addFlags) {
			c.Flags().StringVar(&f.req.SSID, "ssid", "", "broadcast SSID (required)")
		}),
		build(string(domain.DeviceTypeEndpoint), "endpoint", "Add an endpoint", func(c *cobra.Command, f *addFlags) {
			f.addressed(c, true)
			c.Flags().StringVar(&f.req.UserID, "user", "", "owning user ID (required)")
		}),
	)
	return cmd
}

func newRemoveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove NAME",
		Aliases: []string{"rm", "delete"},
		Short:   "Remove a device. Peers referencing it keep their entries.",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.svc.DeleteDevice(cmd.Context(), args[0]); err != nil {
				return err
			}
			printf(cmd, "removed %s\n", strings.TrimSpace(args[0]))
			return nil
		},
	}
}

func newShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Show one device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.svc.GetDevice(args[0])
			if err != nil {
				return err
			}
			printf(cmd, "%s\n", describe(rec))
			if peers, ok := connections(rec); ok && len(peers) > 0 {
				printf(cmd, "connections: %s\n", strings.Join(peers, ", "))
			}
			return nil
		},
	}
}

func newListCommand(a *app) *cobra.Command {
	var filter service.ListFilter
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List devices in insertion order",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			devices := a.svc.ListDevices(filter)
			if len(devices) == 0 {
				printf(cmd, "no devices\n")
				return nil
			}
			renderDevices(cmd, devices)
			return nil
		},
	}
	cmd.Flags().StringVar(&filter.Type, "type", "", "only devices of this type (router, switch, ap, endpoint)")
	cmd.Flags().StringVar(&filter.Status, "status", "", "only devices with this status")
	return cmd
}

func renderDevices(cmd *cobra.Command, devices []codec.Record) {
	table := tablewriter.NewWriter(out(cmd))
	table.SetHeader([]string{"Type", "Name", "Status", "IPv4", "MAC", "Links"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	for _, rec := range devices {
		links := "-"
		if peers, ok := connections(rec); ok {
			links = strconv.Itoa(len(peers))
		}
		table.Append([]string{rec.Type, rec.Name, rec.Status, dash(rec.IPv4), dash(rec.MACAddress), links})
	}
	table.Render()
}

// describe prints a record the way the device it came from prints itself
func describe(rec codec.Record) string {
	d, err := codec.FromRecord(rec)
	if err != nil {
		return fmt.Sprintf("[%s] name=%s status=%s", rec.Type, rec.Name, rec.Status)
	}
	return d.String()
}

// connections returns the peer list of a connector record; ok is false for
// types that hold no connections
func connections(rec codec.Record) ([]string, bool) {
	switch domain.DeviceType(rec.Type) {
	case domain.DeviceTypeRouter, domain.DeviceTypeSwitch:
		return rec.ConnectedDevices, true
	case domain.DeviceTypeAccessPoint:
		return rec.ConnectedEndpoints, true
	}
	return nil, false
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func newFindIPCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "find-ip IPV4",
		Short: "Find the device holding an IPv4 address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.svc.FindByIPv4(args[0])
			if err != nil {
				return err
			}
			printf(cmd, "%s\n", describe(rec))
			return nil
		},
	}
}

func newConnectCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "connect NAME PEER",
		Short: "Record PEER on NAME's connection list",
		Long: "Record PEER on NAME's connection list. The link is one-way and PEER\n" +
			"does not have to exist.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.svc.Connect(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			printf(cmd, "connected %s -> %s\n", strings.TrimSpace(args[0]), strings.TrimSpace(args[1]))
			return nil
		},
	}
}

func newDisconnectCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect NAME PEER",
		Short: "Remove PEER from NAME's connection list",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.svc.Disconnect(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			printf(cmd, "disconnected %s -> %s\n", strings.TrimSpace(args[0]), strings.TrimSpace(args[1]))
			return nil
		},
	}
}

func newDanglingCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dangling",
		Short: "List connection entries naming devices that do not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dangling := a.svc.Dangling()
			if len(dangling) == 0 {
				printf(cmd, "no dangling references\n")
				return nil
			}
			for _, rec := range a.svc.ListDevices(service.ListFilter{}) {
				if peers, ok := dangling[rec.Name]; ok {
					printf(cmd, "%s: %s\n", rec.Name, strings.Join(peers, ", "))
				}
			}
			return nil
		},
	}
}

func newStatsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count devices by type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st := a.svc.Stats()
			for _, t := range domain.DeviceTypes {
				printf(cmd, "%-9s %d\n", t, st.ByType[string(t)])
			}
			printf(cmd, "%-9s %d\n", "TOTAL", st.Total)
			printf(cmd, "%-9s %d\n", "INACTIVE", st.Inactive)
			return nil
		},
	}
}

// errUsage marks flag combinations cobra cannot check on its own
func errUsage(format string, args ...any) error {
	return fmt.Errorf("usage: "+format, args...)
}
