package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"casebook-server/internal/client"
	"casebook-server/internal/draft"
	"casebook-server/pkg/util"
)

// draftStore 草稿的存取方式
// 在线时草稿保存在服务端，离线时保存在本地文件
type draftStore interface {
	Get(ctx context.Context) (draft.Record, error)
	UpdateSection(ctx context.Context, section string, fields map[string]any) (draft.Record, error)
	MarkStep(ctx context.Context, step int) (draft.Record, error)
	Validate(ctx context.Context) ([]draft.Problem, error)
	Submit(ctx context.Context) (string, error)
	Reset(ctx context.Context) error
	Edit(ctx context.Context, caseID string) (draft.Record, error)
}

func (a *app) drafts() draftStore {
	if a.offline {
		return &localDrafts{
			slot:  draft.NewFileSlot(a.store.DraftPath()),
			cases: draft.NewFileCollection(a.store.CasesPath()),
		}
	}
	return &remoteDrafts{api: a.client()}
}

// ==================== 离线草稿 ====================

// localDrafts 文件槽位 + 本地病例集合，病例 ID 为 case_<uuid>
type localDrafts struct {
	slot  *draft.FileSlot
	cases *draft.FileCollection
}

func (l *localDrafts) open(ctx context.Context) (*draft.Manager, error) {
	m := draft.NewManager(l.slot, l.cases, draft.WithIDGenerator(util.GenerateCaseID))
	if err := m.Load(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func (l *localDrafts) Get(ctx context.Context) (draft.Record, error) {
	m, err := l.open(ctx)
	if err != nil {
		return draft.Record{}, err
	}
	return m.Record(), nil
}

func (l *localDrafts) UpdateSection(ctx context.Context, section string, fields map[string]any) (draft.Record, error) {
	m, err := l.open(ctx)
	if err != nil {
		return draft.Record{}, err
	}
	if err := m.UpdateSection(ctx, section, fields); err != nil {
		return draft.Record{}, err
	}
	return m.Record(), nil
}

func (l *localDrafts) MarkStep(ctx context.Context, step int) (draft.Record, error) {
	m, err := l.open(ctx)
	if err != nil {
		return draft.Record{}, err
	}
	if err := m.MarkStepComplete(ctx, step); err != nil {
		return draft.Record{}, err
	}
	return m.Record(), nil
}

func (l *localDrafts) Validate(ctx context.Context) ([]draft.Problem, error) {
	m, err := l.open(ctx)
	if err != nil {
		return nil, err
	}
	return m.ValidateRequired(), nil
}

func (l *localDrafts) Submit(ctx context.Context) (string, error) {
	m, err := l.open(ctx)
	if err != nil {
		return "", err
	}
	return m.Submit(ctx)
}

// Reset 不读取旧草稿，文件损坏时也能清空
func (l *localDrafts) Reset(ctx context.Context) error {
	return draft.NewManager(l.slot, l.cases).Reset(ctx)
}

func (l *localDrafts) Edit(ctx context.Context, caseID string) (draft.Record, error) {
	rec, err := l.cases.Get(ctx, caseID)
	if err != nil {
		return draft.Record{}, err
	}
	if rec == nil {
		return draft.Record{}, fmt.Errorf("病例 %s 不存在", caseID)
	}
	m, err := l.open(ctx)
	if err != nil {
		return draft.Record{}, err
	}
	if err := m.Open(ctx, *rec); err != nil {
		return draft.Record{}, err
	}
	return m.Record(), nil
}

// ==================== 在线草稿 ====================

// remoteDrafts 服务端草稿接口
type remoteDrafts struct {
	api *client.Client
}

func (r *remoteDrafts) Get(ctx context.Context) (draft.Record, error) {
	state, err := r.api.GetDraft(ctx)
	if err != nil {
		return draft.Record{}, err
	}
	return state.Draft, nil
}

func (r *remoteDrafts) UpdateSection(ctx context.Context, section string, fields map[string]any) (draft.Record, error) {
	return r.api.UpdateDraftSection(ctx, section, fields)
}

func (r *remoteDrafts) MarkStep(ctx context.Context, step int) (draft.Record, error) {
	return r.api.MarkDraftStep(ctx, step)
}

func (r *remoteDrafts) Validate(ctx context.Context) ([]draft.Problem, error) {
	return r.api.ValidateDraft(ctx)
}

func (r *remoteDrafts) Submit(ctx context.Context) (string, error) {
	id, err := r.api.SubmitDraft(ctx)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

func (r *remoteDrafts) Reset(ctx context.Context) error {
	return r.api.ResetDraft(ctx)
}

func (r *remoteDrafts) Edit(ctx context.Context, caseID string) (draft.Record, error) {
	id, err := strconv.ParseInt(caseID, 10, 64)
	if err != nil {
		return draft.Record{}, fmt.Errorf("无效的病例ID: %s", caseID)
	}
	return r.api.EditCase(ctx, id)
}

// ==================== 命令 ====================

func newDraftCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "查看和填写病例草稿",
		Long: `分步填写病例草稿，每次修改立即保存。

分区: basicInfo, symptoms, comorbidities, pastHistory, imagingReport, pathologyReport
必填: 姓名、性别、年龄(0-120)、症状持续时间和单位(天/周/月/年)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rec, err := a.drafts().Get(cmd.Context())
			if err != nil {
				return err
			}
			printProgress(cmd, rec)
			return printJSON(cmd.OutOrStdout(), rec)
		},
	}

	cmd.AddCommand(
		newDraftSetCmd(a),
		newDraftStepCmd(a),
		newDraftValidateCmd(a),
		newDraftSubmitCmd(a),
		newDraftResetCmd(a),
	)
	return cmd
}

func newDraftSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <section> <json | 标签...>",
		Short: "修改草稿分区",
		Long: `修改草稿分区，对象分区传入 JSON 并逐字段合并，标签分区直接列出全部标签。

示例:
  casectl draft set basicInfo '{"name":"张三","gender":"男","age":45}'
  casectl draft set symptoms '{"duration":3,"durationUnit":"天"}'
  casectl draft set comorbidities 高血压 糖尿病`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := sectionFields(args[0], args[1:])
			if err != nil {
				return err
			}
			rec, err := a.drafts().UpdateSection(cmd.Context(), args[0], fields)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ 已保存 %s\n", args[0])
			printProgress(cmd, rec)
			return nil
		},
	}
}

// sectionFields 解析命令行参数为分区字段
func sectionFields(section string, args []string) (map[string]any, error) {
	if section == draft.SectionComorbidities || section == draft.SectionPastHistory {
		if len(args) == 1 && strings.HasPrefix(strings.TrimSpace(args[0]), "{") {
			return parseObject(args[0])
		}
		values := make([]string, 0, len(args))
		values = append(values, args...)
		return map[string]any{"values": values}, nil
	}

	if len(args) != 1 {
		return nil, fmt.Errorf("分区 %s 需要一个 JSON 对象", section)
	}
	return parseObject(args[0])
}

func parseObject(raw string) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("JSON 格式错误: %s", raw)
	}
	return fields, nil
}

func newDraftStepCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "step <n>",
		Short: "标记第 n 步已完成",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			step, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("无效的步骤序号: %s", args[0])
			}
			rec, err := a.drafts().MarkStep(cmd.Context(), step)
			if err != nil {
				return err
			}
			printProgress(cmd, rec)
			return nil
		},
	}
}

func newDraftValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "检查必填项",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			problems, err := a.drafts().Validate(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(problems) == 0 {
				fmt.Fprintln(out, "✓ 必填项已完整，可以提交")
				return nil
			}
			fmt.Fprintln(out, "✗ 还有未完成的必填项:")
			for _, p := range problems {
				fmt.Fprintf(out, "  - %s (%s)\n", p.Message, p.Field)
			}
			return nil
		},
	}
}

func newDraftSubmitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "submit",
		Short: "提交草稿",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := a.drafts().Submit(cmd.Context())
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ 病例提交成功，ID: %s\n", id)
			return nil
		},
	}
}

func newDraftResetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "清空草稿",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.drafts().Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ 草稿已清空")
			return nil
		},
	}
}

// printProgress 输出步骤完成情况
func printProgress(cmd *cobra.Command, rec draft.Record) {
	out := cmd.OutOrStdout()
	if rec.ID != "" {
		fmt.Fprintf(out, "正在修改病例 %s\n", rec.ID)
	}
	for i, name := range draft.StepNames {
		mark := "○"
		if i < rec.StepCompleted {
			mark = "●"
		}
		fmt.Fprintf(out, "%s %d.%s ", mark, i+1, name)
	}
	fmt.Fprintln(out)
}
