package model

import (
	"strings"
	"time"
)

// TaskStatus はタスクの状態を表す。
type TaskStatus string

const (
	TaskPending   TaskStatus = "PENDENTE"
	TaskCompleted TaskStatus = "CONCLUIDA"
)

// Toggle は完了・未完了を反転した状態を返す。
// 未知の値は未完了から反転したものとして扱い、CONCLUIDAを返す。
func (s TaskStatus) Toggle() TaskStatus {
	if s == TaskCompleted {
		return TaskPending
	}
	return TaskCompleted
}

// DateLayout はリモートAPIで使用する日付形式（YYYY-MM-DD）。
const DateLayout = "2006-01-02"

// Task はリモートAPIのタスク。
type Task struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"userId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	DueDate     *string    `json:"dueDate"`
	CreatedAt   *string    `json:"createdAt,omitempty"`
}

// TaskPayload はタスクの作成・更新時に送信するボディ。
type TaskPayload struct {
	UserID      int64      `json:"userId,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	DueDate     *string    `json:"dueDate"`
}

// NewTaskPayload は入力値を検証し、新規タスク用のペイロードを生成する。
// タイトルは前後の空白を除去したうえで必須。期限は空なら未設定として扱う。
func NewTaskPayload(userID int64, title, description, dueDate string) (*TaskPayload, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, &ValidationError{Field: "title", Message: "required"}
	}

	var due *string
	if d := strings.TrimSpace(dueDate); d != "" {
		if _, err := time.Parse(DateLayout, d); err != nil {
			return nil, &ValidationError{Field: "dueDate", Message: "must be YYYY-MM-DD"}
		}
		due = &d
	}

	return &TaskPayload{
		UserID:      userID,
		Title:       title,
		Description: strings.TrimSpace(description),
		Status:      TaskPending,
		DueDate:     due,
	}, nil
}

// TogglePayload は状態を反転させた更新用ペイロードを返す。
func (t *Task) TogglePayload() *TaskPayload {
	return &TaskPayload{
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status.Toggle(),
		DueDate:     t.DueDate,
	}
}
