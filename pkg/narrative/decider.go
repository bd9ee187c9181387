package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shouni/go-storyboard-kit/pkg/domain"
)

// 決定エージェントが返しうるアクションです。これ以外の値は契約違反です。
const (
	ActionRefine   = "refine"
	ActionGenerate = "generate"
)

// DecisionInput は、ショット編集の判断材料一式です。
// アセット未生成のショットでは PreviousStructuredPrompt を空、Seed を 0 にします。
type DecisionInput struct {
	ShotDescription          string
	UserRequest              string
	PreviousStructuredPrompt string
	Seed                     int64
	CharactersInShot         []string
	Style                    domain.Style
	HasAsset                 bool
}

// ShotDecision は決定エージェントの応答です。
// UseReferenceImages は「明示的に指定されたか」を区別するためポインタです。
type ShotDecision struct {
	Action             string `json:"action"`
	EditPrompt         string `json:"edit_prompt"`
	ShotDescription    string `json:"shot_description"`
	UseReferenceImages *bool  `json:"use_reference_images"`
}

// DecideShotEdit は、ユーザーの自由記述の編集依頼を refine / generate の
// どちらで扱うかをエージェントに問い合わせます。応答が解釈できない場合は
// エラーを返し、フォールバック方針の適用は呼び出し側に委ねます。
func (e *Extractor) DecideShotEdit(ctx context.Context, in DecisionInput) (*ShotDecision, error) {
	prompt := buildDecisionPrompt(in)

	raw, err := e.gen.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("ショットエージェントの呼び出しに失敗しました: %w", err)
	}

	var decision ShotDecision
	if err := json.Unmarshal([]byte(ExtractJSONBlock(raw)), &decision); err != nil {
		return nil, fmt.Errorf("ショットエージェントの出力を解釈できません: %w", err)
	}
	decision.Action = strings.ToLower(strings.TrimSpace(decision.Action))
	if decision.Action == "" {
		return nil, fmt.Errorf("ショットエージェントが action を返しませんでした")
	}
	return &decision, nil
}

func buildDecisionPrompt(in DecisionInput) string {
	var sb strings.Builder
	sb.WriteString(shotAgentPrompt)
	sb.WriteString("\n\n### CONTEXT ###\n")
	fmt.Fprintf(&sb, "style: %s\n", in.Style)
	fmt.Fprintf(&sb, "has_asset: %t\n", in.HasAsset)
	fmt.Fprintf(&sb, "current_shot_description: %s\n", in.ShotDescription)
	fmt.Fprintf(&sb, "characters_in_shot: %s\n", strings.Join(in.CharactersInShot, ", "))
	fmt.Fprintf(&sb, "previous_seed: %d\n", in.Seed)
	if in.PreviousStructuredPrompt != "" {
		fmt.Fprintf(&sb, "previous_structured_prompt: %s\n", in.PreviousStructuredPrompt)
	} else {
		sb.WriteString("previous_structured_prompt: (none — this shot has never been generated)\n")
	}
	fmt.Fprintf(&sb, "\n### USER REQUEST ###\n%s\n", strings.TrimSpace(in.UserRequest))
	return sb.String()
}
