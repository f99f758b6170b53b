package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

var (
	apiURL  string
	output  string
	timeout time.Duration
)

// HTTPクライアント
var httpClient *http.Client

func main() {
	rootCmd := &cobra.Command{
		Use:   "credctl",
		Short: "Credential Management Service CLI",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if apiURL == "" {
				apiURL = os.Getenv("CREDCTL_API_URL")
			}
			httpClient = &http.Client{Timeout: timeout}
		},
	}

	// グローバルフラグ
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "API endpoint URL (or set CREDCTL_API_URL)")
	rootCmd.PersistentFlags().StringVar(&output, "output", "text", "Output format: text, json")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")

	// サブコマンド登録
	rootCmd.AddCommand(keysCmd())
	rootCmd.AddCommand(caCmd())
	rootCmd.AddCommand(certCmd())
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// versionCmd はバージョン情報を表示する。
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("credctl version %s\n", version)
		},
	}
}

// keysCmd は鍵バインディングを操作するコマンド群のルート。
func keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Inspect and exercise configured encryption keys",
	}
	cmd.AddCommand(keysListCmd())
	cmd.AddCommand(keysEncryptCmd())
	cmd.AddCommand(keysDecryptCmd())
	return cmd
}

// keysListCmd は構成済みの鍵バインディングを一覧表示する。
func keysListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured key bindings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if apiURL == "" {
				return fmt.Errorf("--api-url is required (or set CREDCTL_API_URL)")
			}

			resp, err := httpClient.Get(apiURL + "/v1/keys")
			if err != nil {
				return fmt.Errorf("API request failed: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("reading response: %w", err)
			}
			if resp.StatusCode != http.StatusOK {
				return handleErrorResponse(resp.StatusCode, body)
			}

			if output == "json" {
				fmt.Println(string(body))
				return nil
			}

			var bindings []struct {
				CanaryID string `json:"canary_id"`
				Provider string `json:"provider"`
				Active   bool   `json:"active"`
			}
			if err := json.Unmarshal(body, &bindings); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}
			fmt.Printf("%-36s %-8s %s\n", "CANARY_ID", "PROVIDER", "ACTIVE")
			for _, b := range bindings {
				fmt.Printf("%-36s %-8s %t\n", b.CanaryID, b.Provider, b.Active)
			}
			return nil
		},
	}
}

// keysEncryptCmd はアクティブな鍵で平文を暗号化する。
func keysEncryptCmd() *cobra.Command {
	var plaintext string
	cmd := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt a plaintext value under the active key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if plaintext == "" {
				return fmt.Errorf("--plaintext is required")
			}
			if apiURL == "" {
				return fmt.Errorf("--api-url is required (or set CREDCTL_API_URL)")
			}

			payload, _ := json.Marshal(map[string]string{"plaintext": plaintext})
			resp, err := httpClient.Post(apiURL+"/v1/keys/active/encrypt", "application/json", bytes.NewReader(payload))
			if err != nil {
				return fmt.Errorf("API request failed: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("reading response: %w", err)
			}
			if resp.StatusCode != http.StatusOK {
				return handleErrorResponse(resp.StatusCode, body)
			}
			fmt.Println(string(body))
			return nil
		},
	}
	cmd.Flags().StringVar(&plaintext, "plaintext", "", "Plaintext value to encrypt (required)")
	cmd.MarkFlagRequired("plaintext")
	return cmd
}

// keysDecryptCmd はカナリアIDが指す鍵で暗号文を復号する。
func keysDecryptCmd() *cobra.Command {
	var canaryID, ciphertext, nonce string
	cmd := &cobra.Command{
		Use:   "decrypt",
		Short: "Decrypt a ciphertext using the key bound to a canary id",
		RunE: func(cmd *cobra.Command, args []string) error {
			if canaryID == "" || ciphertext == "" || nonce == "" {
				return fmt.Errorf("--canary-id, --ciphertext and --nonce are required")
			}
			if apiURL == "" {
				return fmt.Errorf("--api-url is required (or set CREDCTL_API_URL)")
			}

			payload, _ := json.Marshal(map[string]string{"ciphertext": ciphertext, "nonce": nonce})
			url := fmt.Sprintf("%s/v1/keys/%s/decrypt", apiURL, canaryID)
			resp, err := httpClient.Post(url, "application/json", bytes.NewReader(payload))
			if err != nil {
				return fmt.Errorf("API request failed: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("reading response: %w", err)
			}
			if resp.StatusCode != http.StatusOK {
				return handleErrorResponse(resp.StatusCode, body)
			}
			fmt.Println(string(body))
			return nil
		},
	}
	cmd.Flags().StringVar(&canaryID, "canary-id", "", "Canary id returned from encrypt (required)")
	cmd.Flags().StringVar(&ciphertext, "ciphertext", "", "Base64-encoded ciphertext (required)")
	cmd.Flags().StringVar(&nonce, "nonce", "", "Base64-encoded nonce (required)")
	cmd.MarkFlagRequired("canary-id")
	cmd.MarkFlagRequired("ciphertext")
	cmd.MarkFlagRequired("nonce")
	return cmd
}

// caCmd はCA管理コマンド群のルート。
func caCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ca",
		Short: "Manage certificate authorities",
	}
	cmd.AddCommand(caRegisterCmd())
	return cmd
}

// caRegisterCmd は新しい自己署名CAを登録する。
func caRegisterCmd() *cobra.Command {
	var name, commonName string
	var durationDays int
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new self-signed certificate authority",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			if apiURL == "" {
				return fmt.Errorf("--api-url is required (or set CREDCTL_API_URL)")
			}

			payload, _ := json.Marshal(map[string]any{
				"name":          name,
				"duration_days": durationDays,
				"subject":       map[string]string{"common_name": commonName},
			})
			resp, err := httpClient.Post(apiURL+"/v1/cas", "application/json", bytes.NewReader(payload))
			if err != nil {
				return fmt.Errorf("API request failed: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("reading response: %w", err)
			}
			if resp.StatusCode != http.StatusCreated {
				return handleErrorResponse(resp.StatusCode, body)
			}
			fmt.Println(string(body))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Unique name for this CA (required)")
	cmd.Flags().StringVar(&commonName, "common-name", "", "Subject common name")
	cmd.Flags().IntVar(&durationDays, "duration-days", 3650, "Validity period in days")
	cmd.MarkFlagRequired("name")
	return cmd
}

// certCmd は証明書発行コマンド群のルート。
func certCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cert",
		Short: "Issue certificates",
	}
	cmd.AddCommand(certIssueCmd())
	return cmd
}

// certIssueCmd は自己署名、またはCAに署名させた証明書を発行する。
func certIssueCmd() *cobra.Command {
	var caID, commonName string
	var selfSigned bool
	var durationDays int
	var dnsNames []string
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a leaf certificate",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !selfSigned && caID == "" {
				return fmt.Errorf("either --self-signed or --ca <id> is required")
			}
			if apiURL == "" {
				return fmt.Errorf("--api-url is required (or set CREDCTL_API_URL)")
			}

			payload, _ := json.Marshal(map[string]any{
				"duration_days": durationDays,
				"subject":       map[string]string{"common_name": commonName},
				"dns_names":     dnsNames,
			})

			url := apiURL + "/v1/certificates/self-signed"
			if !selfSigned {
				url = fmt.Sprintf("%s/v1/cas/%s/certificates", apiURL, caID)
			}

			resp, err := httpClient.Post(url, "application/json", bytes.NewReader(payload))
			if err != nil {
				return fmt.Errorf("API request failed: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("reading response: %w", err)
			}
			if resp.StatusCode != http.StatusCreated {
				return handleErrorResponse(resp.StatusCode, body)
			}
			fmt.Println(string(body))
			return nil
		},
	}
	cmd.Flags().BoolVar(&selfSigned, "self-signed", false, "Issue a self-signed certificate instead of using a CA")
	cmd.Flags().StringVar(&caID, "ca", "", "Id of the registered CA to sign with")
	cmd.Flags().StringVar(&commonName, "common-name", "", "Subject common name")
	cmd.Flags().IntVar(&durationDays, "duration-days", 90, "Validity period in days")
	cmd.Flags().StringSliceVar(&dnsNames, "dns-name", nil, "Subject alternative DNS name (repeatable)")
	return cmd
}

func handleErrorResponse(statusCode int, body []byte) error {
	var errResp struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&errResp); err == nil && errResp.Message != "" {
		return fmt.Errorf("Error: %s", errResp.Message)
	}
	return fmt.Errorf("Error: server returned status %d", statusCode)
}
