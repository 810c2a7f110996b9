package cmd

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bosocmputer/product_identify/internal/app"
	"github.com/bosocmputer/product_identify/internal/common"
	"github.com/bosocmputer/product_identify/internal/pipeline"
	"github.com/bosocmputer/product_identify/pkg/models"
	"github.com/spf13/cobra"
)

var (
	barcodeHint  string
	outputFormat string
)

var productCmd = &cobra.Command{
	Use:   "product [image...]",
	Short: "Identify one product",
	Long: `Identify the product in a photo. Several files are treated as a burst and
the most informative frame is used. An http(s) URL is fetched instead of read.

Examples:
  identify product maggi.jpg
  identify product frame1.jpg frame2.jpg frame3.jpg --barcode 8901058851854
  identify product https://example.com/p.jpg --format json`,
	Args: cobra.RangeArgs(1, 5),
	RunE: runProduct,
}

var productsCmd = &cobra.Command{
	Use:   "products [image]",
	Short: "List every product in a photo",
	Args:  cobra.ExactArgs(1),
	RunE:  runProducts,
}

func init() {
	rootCmd.AddCommand(productCmd, productsCmd)

	productCmd.Flags().StringVar(&barcodeHint, "barcode", "", "Barcode hint")
	for _, c := range []*cobra.Command{productCmd, productsCmd} {
		c.Flags().StringVar(&outputFormat, "format", "text", "Output format: text or json")
	}
}

func runProduct(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	controller, cleanup, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	in, err := buildInput(args)
	if err != nil {
		return err
	}
	in.Barcode = barcodeHint

	res, err := controller.Identify(ctx, in, common.NewRequestContext("cli"))
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return printJSON(map[string]interface{}{
			"best":        res.Product,
			"autofill":    res.Product.Autofill(),
			"provider":    res.ProviderName,
			"fingerprint": res.Fingerprint,
		})
	}
	printProduct(res.Product)
	fmt.Printf("Provider:    %s (%s)\n", res.ProviderName, res.UsedProvider)
	fmt.Printf("Fingerprint: %s\n", res.Fingerprint)
	if len(args) > 1 {
		fmt.Printf("Frame:       %d (%s)\n", res.FrameIndex, args[res.FrameIndex])
	}
	return nil
}

func runProducts(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	controller, cleanup, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	in, err := buildInput(args)
	if err != nil {
		return err
	}

	res, err := controller.IdentifyMulti(ctx, in, common.NewRequestContext("cli"))
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return printJSON(res.Products)
	}
	fmt.Printf("Found %d products via %s:\n\n", len(res.Products), res.ProviderName)
	for i, p := range res.Products {
		fmt.Printf("─── Product %d ───\n", i+1)
		printProduct(p)
		fmt.Println()
	}
	return nil
}

// buildInput reads local files as base64 frames; a single URL is passed through.
func buildInput(args []string) (pipeline.Input, error) {
	if len(args) == 1 && isURL(args[0]) {
		return pipeline.Input{ImageURL: args[0]}, nil
	}

	var frames []string
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return pipeline.Input{}, fmt.Errorf("failed to read %s: %w", path, err)
		}
		frames = append(frames, base64.StdEncoding.EncodeToString(data))
	}
	if len(frames) == 1 {
		return pipeline.Input{ImageBase64: frames[0]}, nil
	}
	return pipeline.Input{FramesBase64: frames}, nil
}

func isURL(s string) bool {
	return len(s) > 8 && (s[:7] == "http://" || s[:8] == "https://")
}

func printProduct(p models.Product) {
	fmt.Printf("Name:        %s\n", p.ProductName)
	fmt.Printf("Brand:       %s\n", p.Brand)
	fmt.Printf("Unit:        %s\n", p.Unit)
	fmt.Printf("Category:    %s\n", p.Category)
	if p.Code != "" {
		fmt.Printf("Barcode:     %s\n", p.Code)
	}
	if p.MRP != nil {
		fmt.Printf("MRP:         ₹%.2f\n", *p.MRP)
	}
	if p.GST != nil {
		fmt.Printf("GST:         %.0f%% (HSN %s)\n", *p.GST, p.HSN)
	}
	fmt.Printf("Confidence:  %.2f\n", p.Confidence)
}

func printJSON(v interface{}) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(output))
	return nil
}
