// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// initctl is the command-line client for the property/control socket:
// it sets properties and issues ctl.start/ctl.stop/ctl.restart requests
// the same way any other client of the property service would, over
// the same SETPROP2 framing.
//
// Usage:
//
//	initctl set <name> [value]
//	initctl start|stop|restart <service>
//	initctl du
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/coreinit/coreinit/lib/process"
	"github.com/coreinit/coreinit/propsvc"
)

func main() {
	flags := pflag.NewFlagSet("initctl", pflag.ExitOnError)
	socketPath := flags.String("socket", "/dev/socket/property_service", "property service socket path")
	persistDir := flags.String("persist-dir", "/data/property", "persistent property directory (for 'du')")
	if err := flags.Parse(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
	args := flags.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch args[0] {
	case "set":
		err = setCmd(*socketPath, args[1:])
	case "start", "stop", "restart":
		err = ctlCmd(*socketPath, args[0], args[1:])
	case "du":
		err = duCmd(*persistDir)
	case "help", "--help", "-h":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		process.Fatal(err)
	}
}

func setCmd(socketPath string, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: initctl set <name> [value]")
	}
	name := args[0]
	var value string
	if len(args) >= 2 {
		value = args[1]
	} else if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintf(os.Stderr, "value for %s: ", name)
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("initctl: reading value: %w", err)
		}
		value = string(raw)
	}

	code, err := setProp2(socketPath, name, value)
	if err != nil {
		return err
	}
	if code != propsvc.Success {
		return fmt.Errorf("initctl: set %s: %s", name, code.String())
	}
	return nil
}

func ctlCmd(socketPath, verb string, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: initctl %s <service>", verb)
	}
	code, err := setProp2(socketPath, "ctl."+verb, args[0])
	if err != nil {
		return err
	}
	if code != propsvc.Success {
		return fmt.Errorf("initctl: ctl.%s %s: %s", verb, args[0], code.String())
	}
	return nil
}

func printUsage() {
	fmt.Print(`initctl - property/control socket client

USAGE
    initctl set <name> [value]     set a property (prompts for value if omitted and interactive)
    initctl start <service>        issue ctl.start
    initctl stop <service>         issue ctl.stop
    initctl restart <service>      issue ctl.restart
    initctl du                     report persistent property directory disk usage

FLAGS
    --socket <path>       property service socket (default /dev/socket/property_service)
    --persist-dir <path>  persistent property directory (default /data/property)
`)
}
