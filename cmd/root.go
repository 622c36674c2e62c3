package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "workers-ai-proxy",
	Short: "An OpenAI-compatible gateway in front of Cloudflare Workers AI",
	Long: `Workers AI Proxy is a single-binary edge gateway that exposes the OpenAI
API surface (chat, completions, embeddings, audio, images, responses) and
forwards requests to Cloudflare Workers AI, persisting generated images
to an S3-compatible bucket such as R2.`,
	Version: "0.3.0",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
