package evidence

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultBucket = "evidence"

// GridFSStore 生产环境的凭证存储，文件名即对象键
type GridFSStore struct {
	db     *mongo.Database
	bucket string
	now    func() time.Time
}

func NewGridFSStore(db *mongo.Database) *GridFSStore {
	return &GridFSStore{db: db, bucket: defaultBucket, now: time.Now}
}

type gridFSFile struct {
	ID         primitive.ObjectID `bson:"_id"`
	Filename   string             `bson:"filename"`
	Length     int64              `bson:"length"`
	UploadDate time.Time          `bson:"uploadDate"`
	Metadata   Object             `bson:"metadata"`
}

// newBucket 上传的超时设置挂在 bucket 上，每次调用单独创建
func (s *GridFSStore) newBucket() (*gridfs.Bucket, error) {
	return gridfs.NewBucket(s.db, options.GridFSBucket().SetName(s.bucket))
}

func (s *GridFSStore) Put(ctx context.Context, key, contentType string, data []byte) (Object, error) {
	bucket, err := s.newBucket()
	if err != nil {
		return Object{}, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := bucket.SetWriteDeadline(deadline); err != nil {
			return Object{}, err
		}
	}

	obj := describe(key, contentType, data, s.now())
	uploadOpts := options.GridFSUpload().SetMetadata(obj)
	if _, err := bucket.UploadFromStream(key, bytes.NewReader(data), uploadOpts); err != nil {
		return Object{}, fmt.Errorf("failed to upload evidence: %w", err)
	}
	return obj, nil
}

func (s *GridFSStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.find(ctx, key)
	if stderrors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *GridFSStore) List(ctx context.Context, createdAfter, createdBefore time.Time, limit int) ([]Object, error) {
	bucket, err := s.newBucket()
	if err != nil {
		return nil, err
	}

	findOpts := options.GridFSFind().SetSort(bson.D{{Key: "uploadDate", Value: 1}})
	if limit > 0 {
		findOpts.SetLimit(int32(limit))
	}
	cursor, err := bucket.FindContext(ctx, bson.M{"uploadDate": bson.M{"$gt": createdAfter, "$lt": createdBefore}}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to list evidence: %w", err)
	}
	defer cursor.Close(ctx)

	var files []gridFSFile
	if err := cursor.All(ctx, &files); err != nil {
		return nil, err
	}

	out := make([]Object, 0, len(files))
	for _, f := range files {
		obj := f.Metadata
		if obj.Key == "" {
			obj.Key = f.Filename
			obj.Size = f.Length
			obj.CreatedAt = f.UploadDate
		}
		out = append(out, obj)
	}
	return out, nil
}

func (s *GridFSStore) Delete(ctx context.Context, key string) error {
	file, err := s.find(ctx, key)
	if stderrors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	bucket, err := s.newBucket()
	if err != nil {
		return err
	}
	if err := bucket.DeleteContext(ctx, file.ID); err != nil && !stderrors.Is(err, gridfs.ErrFileNotFound) {
		return fmt.Errorf("failed to delete evidence: %w", err)
	}
	return nil
}

func (s *GridFSStore) find(ctx context.Context, key string) (*gridFSFile, error) {
	bucket, err := s.newBucket()
	if err != nil {
		return nil, err
	}

	cursor, err := bucket.FindContext(ctx, bson.M{"filename": key}, options.GridFSFind().SetLimit(1))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if !cursor.Next(ctx) {
		if err := cursor.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}

	var file gridFSFile
	if err := cursor.Decode(&file); err != nil {
		return nil, err
	}
	return &file, nil
}
