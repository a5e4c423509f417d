package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/boddenberg/boleto-pix-go/internal/brcode"
	"github.com/boddenberg/boleto-pix-go/internal/domain"
	"github.com/boddenberg/boleto-pix-go/internal/infra/qrimage"

	"github.com/spf13/cobra"
)

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Build a BR Code payload from flags",
	Example: `  boletopix encode --key pay@example.com --name "EXAMPLE SCHOOL" \
    --city "EXAMPLE CITY" --amount 130.00 --ref BOL42ABC123

  # Also write the QR image
  boletopix encode ... --png code.png --size 320`,
	Args: cobra.NoArgs,
	RunE: runEncode,
}

var decodeCmd = &cobra.Command{
	Use:   "decode [payload]",
	Short: "Parse a BR Code payload and verify its checksum",
	Args:  cobra.ExactArgs(1),
	RunE:  runDecode,
}

func init() {
	rootCmd.AddCommand(encodeCmd, decodeCmd)

	f := encodeCmd.Flags()
	f.String("key", "", "Pix key of the receiver")
	f.String("name", "", "Beneficiary name")
	f.String("city", "", "Beneficiary city")
	f.String("mcc", "", "Merchant category code (default 0000)")
	f.String("amount", "", "Amount, e.g. 130.00")
	f.String("ref", "", "Reference id (alphanumeric, up to 25 chars)")
	f.String("description", "", "Optional free text")
	f.String("png", "", "Write the QR image to this file")
	f.Int("size", 256, "QR image size in pixels")
	for _, name := range []string{"key", "name", "city", "amount", "ref"} {
		_ = encodeCmd.MarkFlagRequired(name)
	}

	decodeCmd.Flags().Bool("json", false, "Output as JSON")
}

func runEncode(cmd *cobra.Command, _ []string) error {
	f := cmd.Flags()
	key, _ := f.GetString("key")
	name, _ := f.GetString("name")
	city, _ := f.GetString("city")
	mcc, _ := f.GetString("mcc")
	rawAmount, _ := f.GetString("amount")
	ref, _ := f.GetString("ref")
	desc, _ := f.GetString("description")
	pngPath, _ := f.GetString("png")
	size, _ := f.GetInt("size")

	amount, err := domain.NewMoney(rawAmount)
	if err != nil {
		return err
	}

	p, err := brcode.Encode(brcode.Input{
		Merchant: domain.MerchantProfile{
			PixKey:       key,
			Beneficiary:  name,
			City:         city,
			CategoryCode: mcc,
		},
		Amount:      amount,
		ReferenceID: ref,
		Description: desc,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, p.Text)
	for _, d := range p.DiagnosticStrings() {
		fmt.Fprintf(cmd.ErrOrStderr(), "note: %s\n", d)
	}

	if pngPath != "" {
		png, err := qrimage.NewRenderer("M").PNG(p.Text, size)
		if err != nil {
			return err
		}
		if err := os.WriteFile(pngPath, png, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", pngPath, err)
		}
	}
	return nil
}

func runDecode(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	d, err := brcode.Decode(strings.TrimSpace(args[0]))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	}

	rows := [][2]string{
		{"pix key", d.PixKey},
		{"beneficiary", d.MerchantName},
		{"city", d.MerchantCity},
		{"amount", d.Amount},
		{"reference id", d.ReferenceID},
		{"description", d.Description},
		{"category", d.CategoryCode},
		{"dynamic", fmt.Sprint(d.Dynamic())},
		{"checksum", d.CRC + " (ok)"},
	}
	for _, r := range rows {
		if r[1] != "" {
			fmt.Fprintf(out, "%-13s %s\n", r[0]+":", r[1])
		}
	}
	return nil
}
