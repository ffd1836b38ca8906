package service

import (
	"context"
	"headless-cms/internal/data"
)

// HomePosts returns the posts listed on a home page: live blog pages
// anywhere below it that are flagged show_in_menus, newest post date first.
// A home page without a tree position, such as an unsaved preview, lists
// nothing.
func (s *PageService) HomePosts(ctx context.Context, home *data.Page) ([]*data.BlogPage, error) {
	if home.Path == "" {
		return []*data.BlogPage{}, nil
	}
	show := true
	posts, err := s.pages.ListBlogPosts(ctx, data.PostQuery{
		Ancestor:    home,
		ShowInMenus: &show,
		Order:       data.ByDateDesc,
	})
	if err != nil {
		return nil, translate(err)
	}
	return posts, nil
}
