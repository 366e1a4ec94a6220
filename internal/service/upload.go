package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"phcportal/internal/storage"
)

// ImageUpload is a file received from a multipart form.
type ImageUpload struct {
	Filename string
	Body     io.Reader
}

// uploadImage resizes the upload and stores it under folder in bucket.
func uploadImage(ctx context.Context, store storage.Store, bucket, folder string, img *ImageUpload, now time.Time) (*storage.Object, error) {
	if store == nil {
		return nil, newError(ErrUpstream, "Image storage is not configured")
	}
	prepared, err := storage.PrepareImage(img.Body, img.Filename, storage.MaxImageWidth)
	switch {
	case errors.Is(err, storage.ErrNotImage):
		return nil, invalid("Only JPEG, PNG or GIF images can be uploaded")
	case errors.Is(err, storage.ErrTooLarge):
		return nil, invalid("Images must be 5 MB or smaller")
	case err != nil:
		return nil, err
	}

	obj, err := store.Upload(ctx, bucket, storage.ObjectName(folder, prepared.Filename, now), prepared.ContentType, prepared.Data)
	if err != nil {
		log.Printf("[STORAGE] upload to %s failed: %v", bucket, err)
		return nil, newError(ErrUpstream, "Failed to upload image")
	}
	return &obj, nil
}

// discardObject is the compensation step when the database write after an upload fails.
// It runs on a fresh context so a cancelled request still cleans up.
func discardObject(store storage.Store, obj *storage.Object) {
	if obj == nil || store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := store.Delete(ctx, obj.Bucket, obj.Path); err != nil {
		log.Printf("[STORAGE] failed to remove orphaned object %s/%s: %v", obj.Bucket, obj.Path, err)
	}
}

// saveWithImage uploads img (when given) and then runs write. If write fails the new object
// is removed again. On success the caller gets the new object to reference.
func saveWithImage(ctx context.Context, store storage.Store, bucket, folder string, img *ImageUpload, now time.Time, write func(obj *storage.Object) error) error {
	var obj *storage.Object
	if img != nil {
		var err error
		if obj, err = uploadImage(ctx, store, bucket, folder, img, now); err != nil {
			return err
		}
	}
	if err := write(obj); err != nil {
		discardObject(store, obj)
		return err
	}
	return nil
}

// replacedObject removes an object that a successful update no longer references.
func replacedObject(store storage.Store, bucket, path string) {
	if path == "" {
		return
	}
	discardObject(store, &storage.Object{Bucket: bucket, Path: path})
}

func describeUpload(obj *storage.Object) string {
	if obj == nil {
		return ""
	}
	return fmt.Sprintf("%s/%s", obj.Bucket, obj.Path)
}
