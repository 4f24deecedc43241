// cubbyctl is a small command-line client for a cubby server: register or
// log in, upload batches, list the namespace tree, and fetch files.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var serverURL string

var rootCmd = &cobra.Command{
	Use:   "cubbyctl",
	Short: "Client for a cubby file-shelf server",
}

func init() {
	defaultServer := os.Getenv("CUBBY_SERVER")
	if defaultServer == "" {
		defaultServer = "http://localhost:8080"
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServer, "cubby server base URL")

	getCmd.Flags().StringP("output", "o", "", "write the file here instead of stdout")

	rootCmd.AddCommand(registerCmd, loginCmd, logoutCmd, lsCmd, putCmd, getCmd)
}

// sessionPath returns where the CLI stores its session token.
func sessionPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating config dir: %w", err)
	}
	return filepath.Join(dir, "cubbyctl", "session"), nil
}

func saveSession(token string) error {
	path, err := sessionPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating session dir: %w", err)
	}
	return os.WriteFile(path, []byte(token), 0o600)
}

func loadSession() (string, error) {
	path, err := sessionPath()
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("no saved session, run `cubbyctl login` first")
	}
	return strings.TrimSpace(string(data)), nil
}

// doRequest sends a request with the saved session cookie (if any) attached.
func doRequest(method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequest(method, serverURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token, err := loadSession(); err == nil && token != "" {
		req.AddCookie(&http.Cookie{Name: "cubby_session", Value: token})
	}
	return http.DefaultClient.Do(req)
}

// apiError decodes the server's {"error": ...} body into an error.
func apiError(resp *http.Response) error {
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body["error"] != "" {
		return fmt.Errorf("%s: %s", resp.Status, body["error"])
	}
	return fmt.Errorf("server returned %s", resp.Status)
}

// promptPassword reads a password without echo, falling back to plain
// stdin when not attached to a terminal.
func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(secret), nil
	}
	var secret string
	if _, err := fmt.Fscanln(os.Stdin, &secret); err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return secret, nil
}

// authenticate posts credentials to an auth endpoint and saves the session.
func authenticate(endpoint, username string, wantStatus int) error {
	password, err := promptPassword()
	if err != nil {
		return err
	}

	payload, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := doRequest(http.MethodPost, endpoint, bytes.NewReader(payload), "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		return apiError(resp)
	}

	for _, c := range resp.Cookies() {
		if c.Name == "cubby_session" {
			if err := saveSession(c.Value); err != nil {
				return err
			}
			fmt.Printf("Logged in as %s\n", username)
			return nil
		}
	}
	return fmt.Errorf("server did not set a session cookie")
}

var registerCmd = &cobra.Command{
	Use:   "register <username>",
	Short: "Create an account and log in",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return authenticate("/api/auth/register", args[0], http.StatusCreated)
	},
}

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Log in to an existing account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return authenticate("/api/auth/login", args[0], http.StatusOK)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the current session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := doRequest(http.MethodPost, "/api/auth/logout", nil, "")
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return apiError(resp)
		}
		path, err := sessionPath()
		if err == nil {
			os.Remove(path)
		}
		fmt.Println("Logged out")
		return nil
	},
}

// treeNode mirrors the server's tree listing shape.
type treeNode struct {
	Name     string     `json:"name"`
	Dir      bool       `json:"dir"`
	Size     int64      `json:"size"`
	Children []treeNode `json:"children"`
}

func printTree(n treeNode, indent string) {
	for _, c := range n.Children {
		if c.Dir {
			fmt.Printf("%s%s/\n", indent, c.Name)
			printTree(c, indent+"  ")
		} else {
			fmt.Printf("%s%s (%d bytes)\n", indent, c.Name, c.Size)
		}
	}
}

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List your namespace as a tree",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := doRequest(http.MethodGet, "/api/tree", nil, "")
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return apiError(resp)
		}

		var root treeNode
		if err := json.NewDecoder(resp.Body).Decode(&root); err != nil {
			return fmt.Errorf("decoding tree: %w", err)
		}
		if len(root.Children) == 0 {
			fmt.Println("(empty)")
			return nil
		}
		printTree(root, "")
		return nil
	},
}

var putCmd = &cobra.Command{
	Use:   "put <file>...",
	Short: "Upload files as one batch into a fresh share folder",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		for _, path := range args {
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("opening %s: %w", path, err)
			}
			part, err := writer.CreateFormFile("file", filepath.Base(path))
			if err != nil {
				f.Close()
				return err
			}
			if _, err := io.Copy(part, f); err != nil {
				f.Close()
				return fmt.Errorf("reading %s: %w", path, err)
			}
			f.Close()
		}
		if err := writer.Close(); err != nil {
			return err
		}

		resp, err := doRequest(http.MethodPost, "/api/upload", &buf, writer.FormDataContentType())
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			return apiError(resp)
		}

		var result struct {
			FolderID string `json:"folder_id"`
			Files    []struct {
				Name string `json:"name"`
				URL  string `json:"url"`
			} `json:"files"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		fmt.Printf("Folder %s\n", result.FolderID)
		for _, f := range result.Files {
			fmt.Printf("  %s  %s%s\n", f.Name, serverURL, f.URL)
		}
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <owner> <folder> <name>",
	Short: "Download one file from a share folder",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, folder, name := args[0], args[1], args[2]
		resp, err := doRequest(http.MethodGet, "/d/"+owner+"/"+folder+"/"+name, nil, "")
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return apiError(resp)
		}

		out := os.Stdout
		if path, _ := cmd.Flags().GetString("output"); path != "" {
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("creating %s: %w", path, err)
			}
			defer f.Close()
			out = f
		}
		if _, err := io.Copy(out, resp.Body); err != nil {
			return fmt.Errorf("writing file: %w", err)
		}
		return nil
	},
}
