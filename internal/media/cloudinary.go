package media

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/RajashekarChelimala/comrade-backend/internal/apperrors"
	"github.com/RajashekarChelimala/comrade-backend/internal/config"
)

// Cloudinary 基于 REST 接口的签名上传/删除实现。
// 接口格式见 https://api.cloudinary.com/v1_1/<cloud>/<kind>/{upload,destroy}
type Cloudinary struct {
	cfg    config.MediaConfig
	client *http.Client
}

// NewCloudinary 创建 Cloudinary 客户端，远程调用带超时上限
func NewCloudinary(cfg config.MediaConfig) *Cloudinary {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Cloudinary{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *Cloudinary) Upload(ctx context.Context, base64Data, kind string) (*Asset, error) {
	if kind != "image" && kind != "video" {
		return nil, apperrors.InvalidArg("only image and video files are allowed")
	}
	if base64Data == "" {
		return nil, apperrors.InvalidArg("file is required")
	}

	// 允许裸 base64 或 data URL，统一补成 data URL
	payload := base64Data
	if !strings.HasPrefix(payload, "data:") {
		mime := "image/jpeg"
		if kind == "video" {
			mime = "video/mp4"
		}
		payload = "data:" + mime + ";base64," + payload
	}

	publicID := uuid.NewString()
	if c.cfg.Folder != "" {
		publicID = c.cfg.Folder + "/" + publicID
	}

	form := url.Values{}
	form.Add("file", payload)
	form.Add("api_key", c.cfg.APIKey)
	form.Add("public_id", publicID)
	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	form.Add("timestamp", timestamp)
	form.Add("signature", c.sign(publicID, timestamp))

	endpoint := fmt.Sprintf("https://api.cloudinary.com/v1_1/%s/%s/upload", c.cfg.CloudName, kind)
	body, err := c.post(ctx, endpoint, form)
	if err != nil {
		return nil, err
	}

	var res struct {
		SecureURL string `json:"secure_url"`
		URL       string `json:"url"`
		PublicID  string `json:"public_id"`
		Error     struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, apperrors.Transient("failed to parse upload response", err)
	}
	if res.Error.Message != "" {
		return nil, apperrors.Transient("upload failed: "+res.Error.Message, nil)
	}
	u := res.SecureURL
	if u == "" {
		u = res.URL
	}
	if u == "" {
		return nil, apperrors.Transient("upload returned no url", nil)
	}

	return &Asset{URL: u, PublicID: res.PublicID, Kind: kind}, nil
}

func (c *Cloudinary) Destroy(ctx context.Context, publicID, kind string) error {
	if kind != "video" {
		kind = "image"
	}

	form := url.Values{}
	form.Add("public_id", publicID)
	form.Add("api_key", c.cfg.APIKey)
	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	form.Add("timestamp", timestamp)
	form.Add("signature", c.sign(publicID, timestamp))

	endpoint := fmt.Sprintf("https://api.cloudinary.com/v1_1/%s/%s/destroy", c.cfg.CloudName, kind)
	body, err := c.post(ctx, endpoint, form)
	if err != nil {
		return err
	}

	var res struct {
		Result string `json:"result"`
		Error  struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return apperrors.Transient("failed to parse destroy response", err)
	}
	if res.Error.Message != "" {
		return apperrors.Transient("destroy failed: "+res.Error.Message, nil)
	}
	// 资源已不存在视为删除成功，避免卡死重试
	if res.Result != "ok" && res.Result != "not found" {
		return apperrors.Transient("destroy result: "+res.Result, nil)
	}
	return nil
}

// sign Cloudinary 的签名规则：对参与签名的参数串接 API secret 后取 SHA-1
func (c *Cloudinary) sign(publicID, timestamp string) string {
	raw := fmt.Sprintf("public_id=%s&timestamp=%s%s", publicID, timestamp, c.cfg.APISecret)
	return fmt.Sprintf("%x", sha1.Sum([]byte(raw)))
}

func (c *Cloudinary) post(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, apperrors.Transient("object storage request failed", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, apperrors.Transient("failed to read object storage response", err)
	}
	if res.StatusCode != http.StatusOK {
		return nil, apperrors.Transient(fmt.Sprintf("object storage returned status %d", res.StatusCode), nil)
	}
	return body, nil
}
