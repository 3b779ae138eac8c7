package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "qwenchat2api",
	Short: "OpenAI-compatible proxy for the Qwen chat service",
	Long: `qwenchat2api exposes the Qwen chat service behind the OpenAI
chat-completions API.

It translates requests and streamed responses between the two formats,
uploads inline images to the upstream's object storage, and rotates a
pool of upstream credentials, retiring the ones the upstream rejects.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
}
