// Package setup provides the interactive first-run configuration wizard.
package setup

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/memekipedia/tradecore/config"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// RunTUI launches the terminal configuration wizard and writes config.gen.yaml.
func RunTUI() error {
	var (
		platform    string
		network     string
		pair        string
		participant string
		curveID     string
		basePrice   string
		slope       string
		slippage    string
		confirm     bool
	)

	// defaults
	pair = "WIKI_M"
	basePrice = "0.00000001"
	slope = "0.000000001"
	slippage = "100"

	// step 1: platform
	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(headerStyle.Render("TRADECORE CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Let's set up your exchange node.\n"))

	fmt.Println(stepStyle.Render("STEP 1: PLATFORM"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Select Settlement Platform").
				Options(
					huh.NewOption("Chain", "chain"),
					huh.NewOption("Simulation", "simulate"),
				).
				Value(&platform),
		),
	).Run()
	if err != nil {
		return err
	}

	if platform == "chain" {
		fmt.Print("\033[H\033[2J")
		fmt.Println(headerStyle.Render("TRADECORE CONFIG WIZARD"))
		fmt.Println(stepStyle.Render("STEP 2: NETWORK"))
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[string]().
					Title("Select Network").
					Options(
						huh.NewOption("Mainnet", "mainnet"),
						huh.NewOption("Insectarium (testnet)", "insectarium"),
						huh.NewOption("Formicarium (devnet)", "formicarium"),
					).
					Value(&network),
			),
		).Run()
		if err != nil {
			return err
		}
	}

	// pair
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("TRADECORE CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 3: ASSET"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Trading Pair").
				Description("Must contain underscore (e.g. WIKI_M)").
				Value(&pair).
				Validate(func(s string) error {
					_, err := config.PairFromString(s)
					return err
				}),
			huh.NewInput().
				Title("Participant Account").
				Description("Address trades are executed for").
				Value(&participant).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("participant cannot be empty")
					}
					return nil
				}),
			huh.NewInput().
				Title("Curve Contract").
				Description("Bonding curve address (empty for pool-only trading)").
				Value(&curveID),
		),
	).Run()
	if err != nil {
		return err
	}

	// curve parameters
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("TRADECORE CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 4: PRICING"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Base Price").
				Description("Starting price per token in quote units (e.g. 0.00000001)").
				Value(&basePrice).
				Validate(validatePrice),
			huh.NewInput().
				Title("Slope").
				Description("Price increase per token sold (e.g. 0.000000001)").
				Value(&slope).
				Validate(validatePrice),
			huh.NewInput().
				Title("Slippage Tolerance (bps)").
				Description("Default bound for trades, 100 = 1%").
				Value(&slippage).
				Validate(validateBps),
		),
	).Run()
	if err != nil {
		return err
	}

	// confirmation
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("TRADECORE CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	summary := fmt.Sprintf(
		"Platform: %s\nNetwork: %s\nPair: %s\nParticipant: %s\nBase price: %s\nSlope: %s\nSlippage: %s bps\n",
		platform, network, pair, participant, basePrice, slope, slippage,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}

	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	slippageBps, _ := decimal.NewFromString(slippage)

	cfg := config.FileConfig{
		Platform:    platform,
		Network:     network,
		Pair:        pair,
		Participant: participant,
		CurveID:     curveID,
		BasePrice:   basePrice,
		Slope:       slope,
		SlippageBps: slippageBps.IntPart(),
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	filename := "config.gen.yaml"
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting node...", filename)))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message
	return nil
}

func validatePrice(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if d.IsNegative() {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func validateBps(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if d.LessThan(decimal.NewFromInt(1)) || d.GreaterThan(decimal.NewFromInt(10000)) {
		return fmt.Errorf("must be between 1 and 10000")
	}
	return nil
}
