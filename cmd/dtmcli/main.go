package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/dtmtools/blehci/pkg/dtm"
	"github.com/dtmtools/blehci/pkg/hci"
)

const usage = `usage: dtmcli [flags] <command> [args]

commands:
  reset
  address <bdaddr, 12 hex digits e.g. 001122334455>
  txtest <channel> <pktlen> <payload 0-7> <phy 1-4>
  rxtest <channel> <phy 1-4>
  endtest
  per
  resetstats
  regread <addr> <width>
  regwrite <addr> <value> <width>
  advertise <interval>
  scan <interval>
  stop
`

func main() {
	var (
		configPath = flag.String("config", "", "path to a TOML config file")
		port       = flag.String("port", "", "serial port, e.g. /dev/ttyUSB0")
		tag        = flag.String("tag", "", "connection tag used in log lines")
		baud       = flag.Int("baud", 0, "baud rate override")
		timeout    = flag.Duration("timeout", 0, "per-attempt response timeout")
		retries    = flag.Int("retries", -1, "extra completion waits after a timeout")
	)
	flag.Parse()

	cfg := defaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = loadConfig(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "dtmcli: %v\n", err)
			os.Exit(1)
		}
	}
	if *port != "" {
		cfg.Port = *port
	}
	if *tag != "" {
		cfg.Tag = *tag
	}
	if *baud != 0 {
		cfg.Baud = *baud
	}
	if *timeout != 0 {
		cfg.Timeout = *timeout
	}
	if *retries >= 0 {
		cfg.Retries = *retries
	}

	if cfg.Port == "" || flag.NArg() == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dtmcli: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	err = hci.Session(cfg.Port, func(t *hci.Transport) error {
		return run(dtm.NewClient(t), flag.Arg(0), flag.Args()[1:])
	},
		hci.WithBaudRate(cfg.Baud),
		hci.WithTag(cfg.Tag),
		hci.WithLogger(logger),
		hci.WithTimeout(cfg.Timeout),
		hci.WithRetries(cfg.Retries),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dtmcli: %v\n", err)
		os.Exit(1)
	}
}

func run(client *dtm.Client, command string, args []string) error {
	switch command {
	case "reset":
		return client.Reset()

	case "address":
		if len(args) != 1 || len(args[0]) != 12 {
			return fmt.Errorf("address takes one 6-byte hex argument")
		}
		var addr dtm.BDAddr
		for i := range addr {
			b, err := strconv.ParseUint(args[0][2*i:2*i+2], 16, 8)
			if err != nil {
				return fmt.Errorf("parse address: %w", err)
			}
			addr[i] = byte(b)
		}
		return client.SetAddress(addr)

	case "txtest":
		vals, err := parseUints(args, 4)
		if err != nil {
			return err
		}
		return client.TxTest(uint8(vals[0]), uint8(vals[1]), dtm.Payload(vals[2]), dtm.PHY(vals[3]))

	case "rxtest":
		vals, err := parseUints(args, 2)
		if err != nil {
			return err
		}
		return client.RxTest(uint8(vals[0]), dtm.PHY(vals[1]))

	case "endtest":
		n, err := client.EndTest()
		if err != nil {
			return err
		}
		fmt.Printf("received packets: %d\n", n)
		return nil

	case "per":
		stats, err := client.Stats()
		if err != nil {
			return err
		}
		fmt.Printf("rx=%d crc=%d timeout=%d tx=%d per=%.2f%%\n",
			stats.RxPackets, stats.RxCRCErrors, stats.RxTimeouts, stats.TxPackets, stats.PER())
		return nil

	case "resetstats":
		return client.ResetStats()

	case "regread":
		vals, err := parseUints(args, 2)
		if err != nil {
			return err
		}
		v, err := client.ReadRegister(uint32(vals[0]), uint8(vals[1]))
		if err != nil {
			return err
		}
		fmt.Printf("0x%08X = %#x\n", uint32(vals[0]), v)
		return nil

	case "regwrite":
		vals, err := parseUints(args, 3)
		if err != nil {
			return err
		}
		return client.WriteRegister(uint32(vals[0]), vals[1], uint8(vals[2]))

	case "advertise":
		vals, err := parseUints(args, 1)
		if err != nil {
			return err
		}
		return client.StartAdvertising(uint16(vals[0]), true)

	case "scan":
		vals, err := parseUints(args, 1)
		if err != nil {
			return err
		}
		return client.StartScanning(uint16(vals[0]))

	case "stop":
		if err := client.StopAdvertising(); err != nil {
			return err
		}
		return client.StopScanning()
	}
	return fmt.Errorf("unknown command %q", command)
}

// parseUints parses exactly n numeric arguments, accepting 0x prefixes.
func parseUints(args []string, n int) ([]uint64, error) {
	if len(args) != n {
		return nil, fmt.Errorf("expected %d argument(s), have %d", n, len(args))
	}
	vals := make([]uint64, n)
	for i, a := range args {
		v, err := strconv.ParseUint(a, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", a, err)
		}
		vals[i] = v
	}
	return vals, nil
}
