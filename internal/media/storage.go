package media

import "context"

// Asset 对象存储返回的外部资源引用
type Asset struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
	Kind     string `json:"kind"` // image / video
}

// Storage 对象存储协作方接口。上传与删除都是可失败的远程调用，
// 调用方负责隔离失败（上传失败返回给调用者，删除失败留给下轮清理）。
type Storage interface {
	Upload(ctx context.Context, base64Data, kind string) (*Asset, error)
	Destroy(ctx context.Context, publicID, kind string) error
}
