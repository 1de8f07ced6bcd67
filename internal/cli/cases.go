package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"casebook-server/internal/draft"
	"casebook-server/internal/model"
)

func newCasesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cases",
		Short: "管理已提交的病例",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listCases(a, cmd)
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "列出病例，最新的在前",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return listCases(a, cmd)
			},
		},
		newCaseShowCmd(a),
		newCaseEditCmd(a),
		newCaseDeleteCmd(a),
	)
	return cmd
}

func listCases(a *app, cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	if a.offline {
		records, err := draft.NewFileCollection(a.store.CasesPath()).List(cmd.Context())
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Fprintln(out, "暂无离线病例")
			return nil
		}
		for _, r := range records {
			fmt.Fprintf(out, "%s  %s  %s  %s\n",
				r.ID, r.BasicInfo.Name, durationText(r.Symptoms.Duration.Value, r.Symptoms.DurationUnit),
				r.UpdateTime.Local().Format("2006-01-02 15:04"))
		}
		return nil
	}

	cases, err := a.client().ListCases(cmd.Context())
	if err != nil {
		return err
	}
	if len(cases) == 0 {
		fmt.Fprintln(out, "暂无病例")
		return nil
	}
	for _, c := range cases {
		fmt.Fprintf(out, "%d  %s  %s  %s\n",
			c.ID, c.PatientName, durationText(c.SymptomDuration, c.DurationUnit),
			c.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func newCaseShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "查看病例详情",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.offline {
				rec, err := draft.NewFileCollection(a.store.CasesPath()).Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if rec == nil {
					return fmt.Errorf("病例 %s 不存在", args[0])
				}
				return printJSON(cmd.OutOrStdout(), rec)
			}

			id, err := caseID(args[0])
			if err != nil {
				return err
			}
			view, err := a.client().GetCase(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), view)
		},
	}
}

func newCaseEditCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <id>",
		Short: "把病例放回草稿，修改后用 draft submit 重新提交",
		Long: `把已提交的病例放回草稿槽位，覆盖当前草稿。

重新提交时原地更新该病例，病例ID不变。`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.drafts().Edit(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ 病例 %s 已放入草稿\n", rec.ID)
			printProgress(cmd, rec)
			return nil
		},
	}
}

func newCaseDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "删除病例",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.offline {
				m := draft.NewManager(
					draft.NewFileSlot(a.store.DraftPath()),
					draft.NewFileCollection(a.store.CasesPath()),
				)
				if !m.DeleteCase(cmd.Context(), args[0]) {
					return fmt.Errorf("病例 %s 不存在", args[0])
				}
			} else {
				id, err := caseID(args[0])
				if err != nil {
					return err
				}
				if err := a.client().DeleteCase(cmd.Context(), id); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ 删除成功")
			return nil
		},
	}
}

func caseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("无效的病例ID: %s", arg)
	}
	return id, nil
}

// durationLabels 单位的中文显示
var durationLabels = map[string]string{
	model.DurationUnitDay:   "天",
	model.DurationUnitWeek:  "周",
	model.DurationUnitMonth: "个月",
	model.DurationUnitYear:  "年",
}

func durationText(n int, unit string) string {
	if n <= 0 {
		return "-"
	}
	if label, ok := durationLabels[unit]; ok {
		unit = label
	}
	return fmt.Sprintf("%d%s", n, unit)
}
