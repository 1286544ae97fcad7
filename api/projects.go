package api

import (
	"net/http"

	"backend_panelhub/models"
	"backend_panelhub/services"

	"github.com/gin-gonic/gin"
)

// ProjectsAPI предоставляет API проектов и месячных целей
type ProjectsAPI struct {
	projects *services.ProjectService
}

// NewProjectsAPI создает новый экземпляр ProjectsAPI
func NewProjectsAPI(projects *services.ProjectService) *ProjectsAPI {
	return &ProjectsAPI{projects: projects}
}

// RegisterRoutes регистрирует маршруты проектов и целей
func (pa *ProjectsAPI) RegisterRoutes(router *gin.RouterGroup) {
	projects := router.Group("/projects")
	{
		projects.GET("", pa.GetProjects)
		projects.POST("", pa.CreateProject)
		projects.GET("/:id", pa.GetProject)
		projects.PUT("/:id", pa.UpdateProject)
		projects.DELETE("/:id", pa.DeleteProject)
	}

	goals := router.Group("/goals")
	{
		goals.GET("", pa.GetGoals)
		goals.GET("/:month", pa.GetGoal)
		goals.PUT("/:month", pa.SetGoal)
		goals.DELETE("/:month", pa.DeleteGoal)
	}
}

// GetProjects возвращает список проектов
func (pa *ProjectsAPI) GetProjects(c *gin.Context) {
	projects, err := pa.projects.ListProjects()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   projects,
		"count":  len(projects),
	})
}

// GetProject возвращает проект по ID
func (pa *ProjectsAPI) GetProject(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	project, err := pa.projects.GetProject(id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, project)
}

// CreateProject создает проект
func (pa *ProjectsAPI) CreateProject(c *gin.Context) {
	var project models.Project
	if err := c.ShouldBindJSON(&project); err != nil {
		respondBadRequest(c, err)
		return
	}
	if err := pa.projects.CreateProject(&project); err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, project)
}

// UpdateProject обновляет проект
func (pa *ProjectsAPI) UpdateProject(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var input models.Project
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, err)
		return
	}
	project, err := pa.projects.UpdateProject(id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, project)
}

// DeleteProject удаляет проект, клиенты остаются без проекта
func (pa *ProjectsAPI) DeleteProject(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := pa.projects.DeleteProject(id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Проект удален",
	})
}

// GetGoals возвращает месячные цели
func (pa *ProjectsAPI) GetGoals(c *gin.Context) {
	goals, err := pa.projects.ListGoals()
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, goals)
}

// GetGoal возвращает цель на месяц YYYY-MM
func (pa *ProjectsAPI) GetGoal(c *gin.Context) {
	goal, err := pa.projects.GetGoal(c.Param("month"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, goal)
}

// SetGoal создает или заменяет цель на месяц
func (pa *ProjectsAPI) SetGoal(c *gin.Context) {
	var input models.Goal
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, err)
		return
	}
	input.Month = c.Param("month")

	goal, err := pa.projects.SetGoal(&input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, goal)
}

// DeleteGoal удаляет цель на месяц
func (pa *ProjectsAPI) DeleteGoal(c *gin.Context) {
	if err := pa.projects.DeleteGoal(c.Param("month")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Цель удалена",
	})
}
