package service

import (
	"context"
	"encoding/json"
	"fmt"

	"solo_edu_backend/internal/config"
	"solo_edu_backend/internal/model"
	"solo_edu_backend/internal/repository"
	"solo_edu_backend/internal/util"
	"solo_edu_backend/pkg/logger"

	"go.uber.org/zap"
)

// rawRelationship 大模型输出的关系，端点以标题表示
type rawRelationship struct {
	SourceTitle string `json:"source_title"`
	TargetTitle string `json:"target_title"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// OntologyService 为单个课时构建类型化的学习对象关系集
type OntologyService struct {
	ai           AIInvoker
	budgets      config.PromptBudgets
	lessonRepo   *repository.LessonRepository
	ontologyRepo *repository.OntologyRepository
}

func NewOntologyService(ai AIInvoker, budgets config.PromptBudgets, lessonRepo *repository.LessonRepository, ontologyRepo *repository.OntologyRepository) *OntologyService {
	return &OntologyService{ai: ai, budgets: budgets, lessonRepo: lessonRepo, ontologyRepo: ontologyRepo}
}

// RebuildLesson 重建课时本体，语义为整体替换：旧关系在同一事务内删除后写入新集合
func (s *OntologyService) RebuildLesson(ctx context.Context, lessonID string) ([]model.OntologyRelationship, error) {
	lesson, err := s.lessonRepo.FindByID(lessonID)
	if err != nil {
		return nil, util.ErrLessonNotFound
	}

	objects, err := s.lessonRepo.FindLearningObjectsByLessonID(lessonID)
	if err != nil {
		return nil, err
	}
	if len(objects) < 2 {
		// 少于两个对象时不存在可建的边，清空旧关系
		if err := s.ontologyRepo.ReplaceForLesson(lessonID, nil); err != nil {
			return nil, err
		}
		return nil, nil
	}

	titles := make([]string, 0, len(objects))
	byTitle := make(map[string]string, len(objects))
	for _, obj := range objects {
		titles = append(titles, obj.Title)
		byTitle[obj.Title] = obj.ID
	}

	raws, err := s.identifyRelationships(ctx, lesson.Title, titles, lesson.RawText)
	if err != nil {
		return nil, err
	}

	rels := resolveRelationships(lessonID, raws, byTitle)
	if err := s.ontologyRepo.ReplaceForLesson(lessonID, rels); err != nil {
		return nil, err
	}

	logger.Log.Info("课时本体重建完成",
		zap.String("lessonId", lessonID),
		zap.Int("proposed", len(raws)),
		zap.Int("kept", len(rels)))
	return rels, nil
}

// identifyRelationships 一次调用：提示只携带对象标题而非正文，附原始文本用于消歧
func (s *OntologyService) identifyRelationships(ctx context.Context, lessonTitle string, titles []string, rawText string) ([]rawRelationship, error) {
	titlesJSON, _ := json.Marshal(titles)

	prompt := fmt.Sprintf(`You are building a knowledge ontology for the lesson "%s".

These are the learning objects of the lesson:
%s

Identify the meaningful relationships between pairs of these learning objects. For each relationship return:
- "source_title": title of the source learning object (must match one of the titles above exactly)
- "target_title": title of the target learning object (must match one of the titles above exactly)
- "type": one of "prerequisite", "part_of", "related_to", "instance_of"
- "description": one sentence describing the relationship

Respond with ONLY a JSON array.

Lesson content for context:
%s`, lessonTitle, string(titlesJSON), util.Truncate(rawText, s.budgets.Ontology))

	text, err := s.ai.Call(ctx, []AIChatMessage{
		{Role: "system", Content: "You are an expert at knowledge modeling and educational ontologies. Always respond with valid JSON."},
		{Role: "user", Content: prompt},
	}, 3000, 0.3)
	if err != nil {
		return nil, err
	}

	body, err := util.ExtractJSON(text)
	if err != nil {
		return nil, err
	}

	var raws []rawRelationship
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, fmt.Errorf("%w: relationship list does not match contract", util.ErrJSONRecoveryFailed)
	}
	return raws, nil
}

// resolveRelationships 标题精确解析为对象ID，丢弃无法解析的边、自环与类型非法的边，
// 并按 (source, target, type) 去重
func resolveRelationships(lessonID string, raws []rawRelationship, byTitle map[string]string) []model.OntologyRelationship {
	seen := make(map[string]bool)
	var rels []model.OntologyRelationship
	for _, raw := range raws {
		sourceID, okS := byTitle[raw.SourceTitle]
		targetID, okT := byTitle[raw.TargetTitle]
		if !okS || !okT {
			continue
		}
		if sourceID == targetID {
			continue
		}
		if !model.ValidRelationType(raw.Type) {
			continue
		}
		key := sourceID + "|" + targetID + "|" + raw.Type
		if seen[key] {
			continue
		}
		seen[key] = true
		rels = append(rels, model.OntologyRelationship{
			LessonID:    lessonID,
			SourceID:    sourceID,
			TargetID:    targetID,
			Type:        model.RelationType(raw.Type),
			Description: raw.Description,
		})
	}
	return rels
}
