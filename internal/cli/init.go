package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dstolpe/dtaforge/internal/scaffold"
	"github.com/dstolpe/dtaforge/internal/tui"
	"github.com/dstolpe/dtaforge/internal/tui/wizards"
)

var initCmd = &cobra.Command{
	Use:   "init <target_path>",
	Short: "Initialize a new dtaforge project",
	Long: `Initialize a dtaforge project into the specified directory.

The init command creates a starter project with:
- metadata.json describing the columns
- data.csv with matching sample rows
- dtaforge.yaml with sink and attribute defaults

Target directory must be empty or non-existent. In an interactive
terminal the command runs a short wizard to pick the template and sink;
pass --template to skip it.

Examples:
  dtaforge init .                    # Initialize in current directory
  dtaforge init ./mysurvey           # Initialize in ./mysurvey
  dtaforge init ./mysurvey -t demo   # Demo template, no wizard

Available templates:
  basic - Minimal two-column starter
  demo  - Survey sample with missing ranges, labels, and date columns

Use 'dtaforge init --list' to see available templates.`,
	Args:              cobra.MinimumNArgs(0),
	RunE:              runInit,
	ValidArgsFunction: completeDirectories,
}

var (
	initTemplate string
	initList     bool
)

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVarP(&initTemplate, "template", "t", "", "Template to use (basic, demo)")
	initCmd.Flags().BoolVar(&initList, "list", false, "List available templates")

	_ = initCmd.RegisterFlagCompletionFunc("template", completeTemplateNames)
}

func runInit(cmd *cobra.Command, args []string) error {
	if initList {
		return listTemplates(cmd)
	}

	if len(args) == 0 {
		return fmt.Errorf("target path required\n\nUsage: dtaforge init <target_path> [flags]\n\nExamples:\n  dtaforge init .           # Current directory\n  dtaforge init ./mysurvey  # Subdirectory\n\nUse 'dtaforge init --list' to see available templates")
	}

	targetPath := args[0]
	projectName := projectNameFor(targetPath)
	verbose := getVerboseFlag(cmd)

	template := initTemplate
	var wizardResult *wizards.InitResult
	if template == "" {
		if tui.IsInteractive() {
			result, err := wizards.RunInitWizard(targetPath)
			if err != nil {
				return fmt.Errorf("init wizard failed: %w", err)
			}
			if result.Cancelled {
				fmt.Fprintln(os.Stderr, "Cancelled.")
				return nil
			}
			template = result.Template
			wizardResult = &result
		} else {
			template = "basic"
		}
	}

	if err := validateTemplate(template); err != nil {
		return err
	}

	scaffolder := scaffold.NewScaffolder(verbose)
	if err := scaffolder.CreateProject(projectName, template, targetPath); err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	if wizardResult != nil {
		if err := scaffold.WriteSinkConfig(targetPath, wizardResult.Sink, wizardResult.Schema); err != nil {
			return fmt.Errorf("failed to write %s: %w", "dtaforge.yaml", err)
		}
	}

	if tree, err := scaffold.BuildFileTree(targetPath); err == nil {
		fmt.Fprintf(os.Stderr, "\n✓ Project initialized successfully using template '%s'\n\n", template)
		fmt.Fprintln(os.Stderr, "Created structure:")
		fmt.Fprint(os.Stderr, tree)
	} else {
		fmt.Fprintf(os.Stderr, "\n✓ Project initialized successfully in '%s' using template '%s'\n\n", targetPath, template)
	}

	fmt.Fprintln(os.Stderr, "\nNext steps:")
	if targetPath != "." {
		fmt.Fprintf(os.Stderr, "  cd %s\n", targetPath)
	}
	fmt.Fprintln(os.Stderr, "  # Edit metadata.json and data.csv, then:")
	fmt.Fprintln(os.Stderr, "  dtaforge convert .")
	return nil
}

func listTemplates(cmd *cobra.Command) error {
	templates, err := scaffold.ListTemplates()
	if err != nil {
		return fmt.Errorf("failed to list templates: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Available templates:")
	for _, name := range templates {
		fmt.Fprintf(cmd.OutOrStdout(), "  %-8s %s\n", name, scaffold.DescribeTemplate(name))
	}
	return nil
}

func validateTemplate(name string) error {
	templates, err := scaffold.ListTemplates()
	if err != nil {
		return fmt.Errorf("failed to list templates: %w", err)
	}
	for _, t := range templates {
		if t == name {
			return nil
		}
	}
	return fmt.Errorf("invalid template '%s'. Available templates: %v\n\nUse 'dtaforge init --list' for descriptions", name, templates)
}

func projectNameFor(targetPath string) string {
	name := filepath.Base(targetPath)
	if name == "." || name == ".." || name == string(filepath.Separator) {
		if cwd, err := os.Getwd(); err == nil {
			return filepath.Base(cwd)
		}
		return "project"
	}
	return name
}
