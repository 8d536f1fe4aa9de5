package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"trade-risk-analyzer-go/internal/analysis"
)

func newRisksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "risks",
		Short: "Print the risk type catalog",
		Run: func(cmd *cobra.Command, args []string) {
			for _, info := range analysis.Registry() {
				fmt.Printf("%-18s  weight %2.0f  threshold %5.1f  %s\n",
					info.Kind, info.Weight, info.DefaultThreshold, info.Name)
				fmt.Printf("%20s%s\n", "", info.Description)
			}
		},
	}
}
