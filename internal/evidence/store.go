// Package evidence 保存签到照片等凭证对象
package evidence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = stderrors.New("evidence object not found")

// Object 已落盘对象的元数据
type Object struct {
	Key         string    `json:"key" bson:"key"`
	ContentType string    `json:"content_type" bson:"content_type"`
	Size        int64     `json:"size" bson:"size"`
	SHA256      string    `json:"sha256" bson:"sha256"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
}

// Store Put 返回即代表对象已持久化，之后才能被签到引用
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) (Object, error)
	Exists(ctx context.Context, key string) (bool, error)
	// List 按创建时间升序返回 (createdAfter, createdBefore) 区间内的对象，零值 createdAfter 表示不限
	List(ctx context.Context, createdAfter, createdBefore time.Time, limit int) ([]Object, error)
	Delete(ctx context.Context, key string) error
}

// NewKey 每次上传生成新的对象键，重试不会覆盖已有对象
func NewKey(eventID int64, attendeeID string) string {
	return fmt.Sprintf("checkins/%d/%s/%s", eventID, attendeeID, uuid.NewString())
}

func describe(key, contentType string, data []byte, now time.Time) Object {
	sum := sha256.Sum256(data)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return Object{
		Key:         key,
		ContentType: contentType,
		Size:        int64(len(data)),
		SHA256:      hex.EncodeToString(sum[:]),
		CreatedAt:   now.UTC(),
	}
}

func sortByCreatedAt(objs []Object) {
	sort.Slice(objs, func(i, j int) bool {
		return objs[i].CreatedAt.Before(objs[j].CreatedAt)
	})
}
