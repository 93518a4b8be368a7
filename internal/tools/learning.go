package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"maestro/internal/knowledge"
	"maestro/internal/store"
)

// experienceDenylist names identity files learning tools may never touch,
// grounded on the original identity/learning.py DENYLIST.
var experienceDenylist = map[string]bool{"soul.json": true, "tone.json": true}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// RegisterLearning wires the self-modifying tools: update_experience edits a
// JSON file under experienceDir, update_tool_description appends usage tips
// to experience/tools.json, and update_knowledge patches the live knowledge
// store. Every call is audited to the experience log regardless of outcome.
func RegisterLearning(r *Registry, st *store.Store, kb *knowledge.Store, projectID, experienceDir string) {
	r.Register(Tool{
		Schema: Schema{
			Name:        "update_experience",
			Description: "Modify an experience JSON file (patterns, disciplines, preferences learned on the job)",
			Params: []Param{
				{Name: "file", Type: "string", Required: true, Description: "filename under experience/"},
				{Name: "action", Type: "string", Required: true, Description: "append_to_list | set_field"},
				{Name: "field", Type: "string", Required: true},
				{Name: "value", Type: "string", Required: true},
				{Name: "reasoning", Type: "string", Required: true},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (Result, error) {
			file, err := argString(args, "file")
			if err != nil {
				return nil, err
			}
			action, err := argString(args, "action")
			if err != nil {
				return nil, err
			}
			field, err := argString(args, "field")
			if err != nil {
				return nil, err
			}
			value, err := argString(args, "value")
			if err != nil {
				return nil, err
			}
			reasoning := optString(args, "reasoning")

			result := applyExperienceUpdate(experienceDir, file, action, field, value)
			_ = st.LogExperience(ctx, "update_experience", fmt.Sprintf(
				"file=%s action=%s field=%s value=%s reasoning=%s result=%s",
				file, action, field, truncate(value, 500), reasoning, result))
			return TextResult{Text: result}, nil
		},
	})

	r.Register(Tool{
		Schema: Schema{
			Name:        "update_tool_description",
			Description: "Add or update usage tips for a tool, stored in experience/tools.json",
			Params: []Param{
				{Name: "tool_name", Type: "string", Required: true},
				{Name: "tips", Type: "string", Required: true},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (Result, error) {
			toolName, err := argString(args, "tool_name")
			if err != nil {
				return nil, err
			}
			tips, err := argString(args, "tips")
			if err != nil {
				return nil, err
			}
			result := applyToolTip(experienceDir, toolName, tips)
			_ = st.LogExperience(ctx, "update_tool_description", fmt.Sprintf(
				"tool_name=%s tips=%s result=%s", toolName, truncate(tips, 500), result))
			return TextResult{Text: result}, nil
		},
	})

	r.Register(Tool{
		Schema: Schema{
			Name:        "update_knowledge",
			Description: "Correct or enrich a knowledge page (sheet_reflection or discipline) or, with region_id, a region's content_markdown; other fields are skipped",
			Params: []Param{
				{Name: "page_name", Type: "string", Required: true},
				{Name: "field", Type: "string", Required: true},
				{Name: "value", Type: "string", Required: true},
				{Name: "reasoning", Type: "string", Required: true},
				{Name: "region_id", Type: "string"},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (Result, error) {
			pageName, err := argString(args, "page_name")
			if err != nil {
				return nil, err
			}
			field, err := argString(args, "field")
			if err != nil {
				return nil, err
			}
			value, err := argString(args, "value")
			if err != nil {
				return nil, err
			}
			reasoning := optString(args, "reasoning")
			regionID := optString(args, "region_id")

			result := applyKnowledgeUpdate(kb, pageName, field, value, regionID)
			_ = st.LogExperience(ctx, "update_knowledge", fmt.Sprintf(
				"page_name=%s field=%s region_id=%s value=%s reasoning=%s result=%s",
				pageName, field, regionID, truncate(value, 500), reasoning, result))
			return TextResult{Text: result}, nil
		},
	})
}

func applyExperienceUpdate(dir, file, action, field, value string) string {
	if experienceDenylist[filepath.Base(file)] {
		return fmt.Sprintf("DENIED: %s is read-only (identity file)", file)
	}
	if filepath.Ext(file) != ".json" {
		return fmt.Sprintf("SKIP: %s is not a JSON file", file)
	}
	target := filepath.Join(dir, file)
	raw, err := os.ReadFile(target)
	if err != nil {
		return fmt.Sprintf("NOT FOUND: %s does not exist in experience/", file)
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Sprintf("ERROR reading %s: %v", file, err)
	}

	var result string
	switch action {
	case "append_to_list":
		list, ok := data[field].([]any)
		if !ok {
			list = []any{}
		}
		dup := false
		for _, item := range list {
			if s, ok := item.(string); ok && s == value {
				dup = true
				break
			}
		}
		if value != "" && !dup {
			data[field] = append(list, value)
			result = fmt.Sprintf("OK: appended to %s → %s[]", file, field)
		} else {
			result = fmt.Sprintf("SKIP: duplicate or empty value for %s → %s", file, field)
		}
	case "set_field":
		if field == "" {
			result = "SKIP: no field specified"
		} else {
			var parsed any
			if err := json.Unmarshal([]byte(value), &parsed); err == nil {
				data[field] = parsed
			} else {
				data[field] = value
			}
			result = fmt.Sprintf("OK: set %s → %s", file, field)
		}
	default:
		result = fmt.Sprintf("SKIP: unknown action '%s'", action)
	}

	if len(result) >= 2 && result[:2] == "OK" {
		if werr := writeJSONIndent(target, data); werr != nil {
			return fmt.Sprintf("ERROR writing %s: %v", file, werr)
		}
	}
	return result
}

func applyToolTip(dir, toolName, tips string) string {
	target := filepath.Join(dir, "tools.json")
	raw, err := os.ReadFile(target)
	if err != nil {
		return "NOT FOUND: tools.json missing"
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Sprintf("ERROR reading tools.json: %v", err)
	}
	tipsMap, ok := data["tool_tips"].(map[string]any)
	if !ok {
		tipsMap = map[string]any{}
	}
	tipsMap[toolName] = tips
	data["tool_tips"] = tipsMap
	if err := writeJSONIndent(target, data); err != nil {
		return fmt.Sprintf("ERROR writing tools.json: %v", err)
	}
	return fmt.Sprintf("OK: updated tips for %s", toolName)
}

func applyKnowledgeUpdate(kb *knowledge.Store, pageName, field, value, regionID string) string {
	if regionID != "" && field == "content_markdown" {
		if err := kb.UpdateRegionContent(pageName, regionID, value); err != nil {
			return err.Error()
		}
		return fmt.Sprintf("OK: updated %s/%s content_markdown", pageName, regionID)
	}

	switch field {
	case "sheet_reflection":
		if err := kb.UpdatePageField(pageName, knowledge.FieldSheetReflection, value); err != nil {
			return err.Error()
		}
		return fmt.Sprintf("OK: updated %s sheet_reflection", pageName)
	case "discipline":
		if err := kb.UpdatePageField(pageName, knowledge.FieldDiscipline, value); err != nil {
			return err.Error()
		}
		return fmt.Sprintf("OK: updated %s discipline", pageName)
	default:
		return fmt.Sprintf("SKIP: unknown field '%s' for page update", field)
	}
}

func writeJSONIndent(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
