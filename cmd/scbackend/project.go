package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cuemby/scbackend/pkg/storage"
	"github.com/cuemby/scbackend/pkg/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Project commands operate on the store directly, so run them while the
// server is stopped when using the bolt store.
var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage stored projects",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create NAME -f FILE",
	Short: "Create a project from a JSON or YAML program file",
	Long: `Create a project from a program file.

JSON files are stored as-is. YAML files are converted to JSON first.

Examples:
  scbackend project create demo -f demo.json
  scbackend project create demo -f demo.yaml --description "demo program"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		file, _ := cmd.Flags().GetString("file")
		description, _ := cmd.Flags().GetString("description")

		if !types.ValidID(name) {
			return fmt.Errorf("invalid project name %q", name)
		}
		body, err := readProgram(file)
		if err != nil {
			return err
		}

		return withStore(func(store storage.Store) error {
			project := &types.Project{
				Name: name,
				Body: body,
				Meta: types.EncodeMeta(types.ProjectMeta{Description: description, CreatedAt: time.Now().UTC()}),
			}
			if err := store.CreateProject(project); err != nil {
				return fmt.Errorf("failed to create project: %w", err)
			}
			fmt.Printf("✓ Project %s created\n", name)
			return nil
		})
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store storage.Store) error {
			projects, err := store.ListProjects()
			if err != nil {
				return fmt.Errorf("failed to list projects: %w", err)
			}
			if len(projects) == 0 {
				fmt.Println("No projects found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "NAME\tCREATED\tUPDATED\tSIZE")
			for _, p := range projects {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n",
					p.Name,
					p.CreatedAt.Format(time.RFC3339),
					p.UpdatedAt.Format(time.RFC3339),
					len(p.Body),
				)
			}
			return w.Flush()
		})
	},
}

var projectGetCmd = &cobra.Command{
	Use:   "get NAME",
	Short: "Print a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store storage.Store) error {
			p, err := store.GetProject(args[0])
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(p, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		})
	},
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store storage.Store) error {
			if err := store.DeleteProject(args[0]); err != nil {
				return fmt.Errorf("failed to delete project: %w", err)
			}
			fmt.Printf("✓ Project %s deleted\n", args[0])
			return nil
		})
	},
}

func init() {
	projectCmd.AddCommand(projectCreateCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectGetCmd)
	projectCmd.AddCommand(projectDeleteCmd)

	projectCreateCmd.Flags().StringP("file", "f", "", "Program file (.json, .yaml or .yml)")
	projectCreateCmd.Flags().String("description", "", "Project description")
	_ = projectCreateCmd.MarkFlagRequired("file")
}

func withStore(fn func(storage.Store) error) error {
	store, err := storage.Open(cfg.Store, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()
	return fn(store)
}

// readProgram returns the program in file as a JSON string.
func readProgram(file string) (string, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(file)) {
	case ".yaml", ".yml":
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return "", fmt.Errorf("failed to parse YAML: %w", err)
		}
		out, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("failed to convert YAML to JSON: %w", err)
		}
		return string(out), nil
	default:
		if !json.Valid(data) {
			return "", fmt.Errorf("%s is not valid JSON", file)
		}
		return string(data), nil
	}
}
