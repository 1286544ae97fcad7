package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"backend_panelhub/logger"
	"backend_panelhub/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProjectService управляет проектами партнеров и месячными целями
type ProjectService struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewProjectService создает новый экземпляр ProjectService
func NewProjectService(db *gorm.DB, log *zap.Logger) *ProjectService {
	return &ProjectService{db: db, log: logger.OrNop(log).Named("projects")}
}

// ListProjects возвращает все проекты
func (s *ProjectService) ListProjects() ([]models.Project, error) {
	var projects []models.Project
	if err := s.db.Order("name ASC").Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения проектов: %w", err)
	}
	return projects, nil
}

// GetProject возвращает проект по ID
func (s *ProjectService) GetProject(id uint) (*models.Project, error) {
	var project models.Project
	if err := s.db.First(&project, id).Error; err != nil {
		return nil, notFound(err, "проекта")
	}
	return &project, nil
}

// CreateProject создает проект
func (s *ProjectService) CreateProject(project *models.Project) error {
	if err := validateProject(project); err != nil {
		return err
	}
	project.ID = 0
	if err := s.db.Create(project).Error; err != nil {
		return fmt.Errorf("ошибка создания проекта: %w", err)
	}
	return nil
}

// UpdateProject полностью заменяет изменяемые поля проекта
func (s *ProjectService) UpdateProject(id uint, input *models.Project) (*models.Project, error) {
	if err := validateProject(input); err != nil {
		return nil, err
	}
	project, err := s.GetProject(id)
	if err != nil {
		return nil, err
	}

	err = s.db.Model(project).
		Select("name", "owner_name", "commission_percent", "notes").
		Updates(models.Project{
			Name:              input.Name,
			OwnerName:         input.OwnerName,
			CommissionPercent: input.CommissionPercent,
			Notes:             input.Notes,
		}).Error
	if err != nil {
		return nil, fmt.Errorf("ошибка обновления проекта: %w", err)
	}
	return s.GetProject(id)
}

// DeleteProject удаляет проект, клиенты проекта остаются без проекта
func (s *ProjectService) DeleteProject(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&models.Project{}, id).Error; err != nil {
			return notFound(err, "проекта")
		}
		if err := tx.Model(&models.Client{}).Where("project_id = ?", id).Update("project_id", nil).Error; err != nil {
			return fmt.Errorf("ошибка отвязки клиентов проекта: %w", err)
		}
		if err := tx.Delete(&models.Project{}, id).Error; err != nil {
			return fmt.Errorf("ошибка удаления проекта: %w", err)
		}
		return nil
	})
}

// ListGoals возвращает месячные цели
func (s *ProjectService) ListGoals() ([]models.Goal, error) {
	var goals []models.Goal
	if err := s.db.Order("month DESC").Find(&goals).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения целей: %w", err)
	}
	return goals, nil
}

// SetGoal создает или заменяет цель на месяц
func (s *ProjectService) SetGoal(input *models.Goal) (*models.Goal, error) {
	if _, err := ParseMonth(input.Month, time.UTC); err != nil {
		return nil, err
	}
	if !input.TargetUSD.IsPositive() {
		return nil, invalid("target_usd", "цель должна быть больше нуля")
	}

	var goal models.Goal
	err := s.db.Where("month = ?", input.Month).First(&goal).Error
	switch {
	case err == nil:
		err = s.db.Model(&goal).Select("target_usd", "notes").
			Updates(models.Goal{TargetUSD: input.TargetUSD, Notes: input.Notes}).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		goal = models.Goal{Month: input.Month, TargetUSD: input.TargetUSD, Notes: input.Notes}
		err = s.db.Create(&goal).Error
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка сохранения цели: %w", err)
	}

	s.log.Info("Цель на месяц сохранена", zap.String("month", goal.Month), zap.String("target_usd", input.TargetUSD.String()))
	return s.GetGoal(input.Month)
}

// GetGoal возвращает цель на месяц YYYY-MM
func (s *ProjectService) GetGoal(month string) (*models.Goal, error) {
	var goal models.Goal
	if err := s.db.Where("month = ?", month).First(&goal).Error; err != nil {
		return nil, notFound(err, "цели")
	}
	return &goal, nil
}

// DeleteGoal удаляет цель на месяц
func (s *ProjectService) DeleteGoal(month string) error {
	result := s.db.Unscoped().Where("month = ?", month).Delete(&models.Goal{})
	if result.Error != nil {
		return fmt.Errorf("ошибка удаления цели: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("цель %s: %w", month, ErrNotFound)
	}
	return nil
}

func validateProject(project *models.Project) error {
	project.Name = strings.TrimSpace(project.Name)
	if project.Name == "" {
		return invalid("name", "название проекта обязательно")
	}
	if project.CommissionPercent.IsNegative() || project.CommissionPercent.GreaterThan(hundred) {
		return invalid("commission_percent", "комиссия должна быть от 0 до 100")
	}
	return nil
}
