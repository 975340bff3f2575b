package main

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jerkytreats/cdnhealth/internal/upload"
)

func newUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a file, register it and refresh it on the CDN",
		Long: `Uploads a local file to the configured object storage under
type/category/YYYY/MM/name-hash-timestamp.ext, records it in the resource
registry and asks the CDN to refresh its public URL. The CDN refresh outcome
is reported but never fails the upload.`,
		Example: `  resourcectl upload banner.png --type images --category banners --uploader admin`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}

			resourceType, _ := cmd.Flags().GetString("type")
			category, _ := cmd.Flags().GetString("category")
			uploader, _ := cmd.Flags().GetString("uploader")
			mimeType, _ := cmd.Flags().GetString("mime-type")
			if mimeType == "" {
				mimeType = detectMimeType(path, data)
			}

			manager, reg, err := openManager(nil)
			if err != nil {
				return err
			}
			defer reg.Close()

			res, err := manager.Store(cmd.Context(), upload.Request{
				Data:         data,
				OriginalName: filepath.Base(path),
				MimeType:     mimeType,
				Type:         resourceType,
				Category:     category,
			}, uploader)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}

	cmd.Flags().String("type", "", "Logical resource type, e.g. images")
	cmd.Flags().String("category", "", "Resource category, e.g. banners")
	cmd.Flags().String("uploader", "", "Uploader id recorded with the resource")
	cmd.Flags().String("mime-type", "", "MIME type (detected from the file when empty)")
	return cmd
}

// detectMimeType prefers the extension and falls back to content sniffing.
func detectMimeType(path string, data []byte) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return http.DetectContentType(data)
}
