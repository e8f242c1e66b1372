package service

import (
	"agrichat-web/internal/model"
	"agrichat-web/internal/repository"
	"agrichat-web/internal/session"
	"agrichat-web/pkg/community"
	"agrichat-web/pkg/events"
	"agrichat-web/pkg/log"
	"agrichat-web/pkg/storage"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"
)

// PostForm 是发帖表单提交的字段。Image 为 nil 表示本次没有选择新图片。
type PostForm struct {
	Title    string
	Content  string
	Category string
	Image    *UploadedImage
}

// UploadedImage 是表单中随附的图片文件。
type UploadedImage struct {
	FileName    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// PostService 定义了发帖页面的业务操作。
type PostService interface {
	// Open 加载或创建当前客户端的草稿，并应用 post_type 查询参数。returnTo 非空时记录为返回地址。
	Open(ctx context.Context, sc session.Context, queryType, returnTo string) (*model.PostDraft, error)
	// Submit 保存草稿并发起一次创建请求。失败时返回保留下来的草稿。
	Submit(ctx context.Context, sc session.Context, form PostForm, cred community.Credentials) (*model.CreatedPost, *model.PostDraft, error)
	// Back 无条件丢弃草稿，返回之前记录的页面地址。
	Back(ctx context.Context, sc session.Context) (string, error)
}

type postService struct {
	drafts      repository.DraftRepository
	objects     storage.ObjectStore
	community   community.Client
	publisher   events.Publisher
	draftPrefix string
	now         func() time.Time
}

// NewPostService 创建一个新的 PostService 实例。
func NewPostService(
	drafts repository.DraftRepository,
	objects storage.ObjectStore,
	communityClient community.Client,
	publisher events.Publisher,
	draftPrefix string,
) PostService {
	return &postService{
		drafts:      drafts,
		objects:     objects,
		community:   communityClient,
		publisher:   publisher,
		draftPrefix: draftPrefix,
		now:         time.Now,
	}
}

func (s *postService) loadDraft(ctx context.Context, clientID string) (*model.PostDraft, error) {
	draft, err := s.drafts.Get(ctx, clientID)
	if errors.Is(err, repository.ErrDraftNotFound) {
		return model.NewPostDraft(uuid.NewString(), clientID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取草稿失败: %w", err)
	}
	return draft, nil
}

func (s *postService) saveDraft(ctx context.Context, draft *model.PostDraft) error {
	draft.UpdatedAt = s.now()
	if err := s.drafts.Save(ctx, draft); err != nil {
		return fmt.Errorf("保存草稿失败: %w", err)
	}
	return nil
}

func (s *postService) Open(ctx context.Context, sc session.Context, queryType, returnTo string) (*model.PostDraft, error) {
	draft, err := s.loadDraft(ctx, sc.ClientID)
	if err != nil {
		return nil, err
	}
	if draft.ApplyQueryType(queryType) {
		log.Infof("[PostService] 应用查询参数分类, clientID: %s, category: %s", sc.ClientID, draft.Category)
	}
	if returnTo != "" {
		draft.ReturnTo = returnTo
	}
	if err := s.saveDraft(ctx, draft); err != nil {
		return nil, err
	}
	return draft, nil
}

func (s *postService) Submit(ctx context.Context, sc session.Context, form PostForm, cred community.Credentials) (*model.CreatedPost, *model.PostDraft, error) {
	draft, err := s.loadDraft(ctx, sc.ClientID)
	if err != nil {
		return nil, nil, err
	}

	draft.Title = form.Title
	draft.Content = form.Content
	if err := draft.SetCategory(form.Category); err != nil {
		return nil, draft, err
	}
	if form.Image != nil {
		if err := s.stageImage(ctx, draft, form.Image); err != nil {
			return nil, draft, err
		}
	}
	// 先保存草稿，创建失败时表单内容得以保留
	if err := s.saveDraft(ctx, draft); err != nil {
		return nil, draft, err
	}

	req := community.CreatePostRequest{
		Title:    draft.Title,
		Content:  draft.Content,
		PostType: draft.Category,
	}
	if draft.Image != nil {
		rc, err := s.objects.Get(ctx, draft.Image.ObjectKey)
		if err != nil {
			return nil, draft, fmt.Errorf("读取暂存图片失败: %w", err)
		}
		defer rc.Close()
		req.Image = &community.Image{
			FileName:    draft.Image.FileName,
			ContentType: draft.Image.ContentType,
			Reader:      rc,
		}
	}

	created, err := s.community.CreatePost(ctx, req, cred)
	if err != nil {
		log.Errorf("[PostService] 创建帖子失败, clientID: %s, error: %v", sc.ClientID, err)
		return nil, draft, err
	}

	s.discard(ctx, draft)
	payload := events.PostCreated{
		PostID:   created.ID,
		PostType: string(draft.Category),
		UserID:   sc.UserID,
		HasImage: draft.Image != nil,
	}
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), events.PublishTimeout)
	defer cancel()
	if err := s.publisher.Publish(publishCtx, created.ID, events.New(events.TypePostCreated, payload)); err != nil {
		log.Warnf("发布帖子事件失败, postID: %s, error: %v", created.ID, err)
	}
	log.Infof("[PostService] 帖子创建成功, postID: %s, category: %s", created.ID, draft.Category)
	return created, nil, nil
}

// stageImage 将新选择的图片写入对象存储，并替换草稿中原有的图片。
func (s *postService) stageImage(ctx context.Context, draft *model.PostDraft, img *UploadedImage) error {
	key := path.Join(s.draftPrefix, draft.ClientID, uuid.NewString()+path.Ext(img.FileName))
	if err := s.objects.Put(ctx, key, img.Reader, img.Size, img.ContentType); err != nil {
		return fmt.Errorf("暂存图片失败: %w", err)
	}
	if draft.Image != nil {
		s.removeImage(ctx, draft.Image.ObjectKey)
	}
	draft.Image = &model.ImageRef{
		ObjectKey:   key,
		FileName:    img.FileName,
		ContentType: img.ContentType,
		Size:        img.Size,
	}
	return nil
}

func (s *postService) removeImage(ctx context.Context, key string) {
	if err := s.objects.Remove(ctx, key); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		log.Warnf("删除暂存图片失败, key: %s, error: %v", key, err)
	}
}

// discard 删除草稿及其暂存图片，错误只记录。
func (s *postService) discard(ctx context.Context, draft *model.PostDraft) {
	if err := s.drafts.Delete(ctx, draft.ClientID); err != nil {
		log.Warnf("删除草稿失败, clientID: %s, error: %v", draft.ClientID, err)
	}
	if draft.Image != nil {
		s.removeImage(ctx, draft.Image.ObjectKey)
	}
}

func (s *postService) Back(ctx context.Context, sc session.Context) (string, error) {
	draft, err := s.drafts.Get(ctx, sc.ClientID)
	if errors.Is(err, repository.ErrDraftNotFound) {
		return "/", nil
	}
	if err != nil {
		return "", fmt.Errorf("读取草稿失败: %w", err)
	}
	s.discard(ctx, draft)
	if draft.ReturnTo == "" {
		return "/", nil
	}
	return draft.ReturnTo, nil
}
