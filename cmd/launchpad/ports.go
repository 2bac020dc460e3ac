package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/benaskins/launchpad/internal/port"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "Print the first free port in a range",
	Long:  "Scan [start, end) on 127.0.0.1 in increasing order and print the first port that can be bound. Nothing is reserved.",
	Args:  cobra.NoArgs,
	RunE:  runPorts,
}

var (
	portsStart int
	portsEnd   int
)

func init() {
	portsCmd.Flags().IntVar(&portsStart, "start", port.DefaultStart, "First port to try")
	portsCmd.Flags().IntVar(&portsEnd, "end", port.DefaultEnd, "End of range, exclusive")
	portsCmd.Flags().Bool("json", false, "Output as JSON")
	rootCmd.AddCommand(portsCmd)
}

func runPorts(cmd *cobra.Command, args []string) error {
	jsonOut, _ := cmd.Flags().GetBool("json")

	p, err := port.NewAllocator(portsStart, portsEnd).Allocate()
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(map[string]int{"port": p})
	}
	fmt.Println(p)
	return nil
}
