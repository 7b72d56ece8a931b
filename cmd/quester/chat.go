package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"quester/config"
	"quester/internal/agent"
	"quester/internal/memory"
	"quester/internal/workflow"
	"quester/provider"
	"quester/tools/websearch"
)

// chatCMD runs the agent interactively on stdin with in-process state, no
// server required. When a run suspends for plan review, the next input line
// is fed back as the review response.
func chatCMD() *cobra.Command {
	var cfgPath string
	var chat = &cobra.Command{
		Use:   "chat",
		Short: "Interactive agent session on the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)

			llm, err := provider.New(cfg.LLM)
			if err != nil {
				return err
			}
			searcher, err := websearch.New(websearch.Provider(cfg.Search.Provider), cfg.Search.APIKey(), cfg.Search.Timeout)
			if err != nil {
				return err
			}
			var advisor memory.Advisor = memory.NoopAdvisor{}
			if cfg.Memory.Episodic.Enabled {
				model := cfg.LLM.Routing.Memory
				if model == "" {
					model = cfg.LLM.Routing.Fallback
				}
				advisor = memory.NewEpisodicAdvisor(memory.NewBleveStore(), llm, model,
					memory.WithThresholds(cfg.Memory.Episodic.MinEpisodes, cfg.Memory.Episodic.ConfidenceThreshold),
					memory.WithTopK(cfg.Memory.Episodic.SearchTopK))
			}
			ag := agent.New(cfg, llm, searcher, advisor, workflow.NewMemoryStore())

			threadID := uuid.NewString()
			fmt.Printf("thread %s - type a question, ctrl-d to quit\n", threadID)

			sink := func(ev workflow.Event) {
				switch ev.Type {
				case workflow.EventStatus, workflow.EventPlanningSummary, workflow.EventPlannedQuery, workflow.EventSummarizationStart:
					fmt.Printf("* %s\n", ev.Content)
				case workflow.EventAnswer:
					fmt.Print(ev.Content)
				case workflow.EventInterrupt:
					fmt.Printf("\n%s\n", ev.Content)
				case workflow.EventError:
					fmt.Printf("error: %s\n", ev.Message)
				}
			}

			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("\n> ")
				if !scanner.Scan() {
					return scanner.Err()
				}
				input := strings.TrimSpace(scanner.Text())
				if input == "" {
					continue
				}

				var snap workflow.Snapshot
				if _, pending, _ := ag.PendingInterrupt(cmd.Context(), threadID); pending {
					snap, err = ag.Resume(cmd.Context(), threadID, input, sink)
				} else {
					snap, err = ag.Run(cmd.Context(), threadID, "", input, sink)
				}
				if err != nil {
					fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
					continue
				}
				if snap.Status == workflow.StatusCompleted {
					fmt.Println()
				}
			}
		},
	}
	chat.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return chat
}
