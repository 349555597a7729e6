// Package authz holds the pure authorization policy for article
// mutations. Decisions depend only on the acting user and the target
// article; no storage access, no side effects.
package authz

import "github.com/kingliujiaxin/Mutiple-user-blog-system/internal/domain"

// CanEdit reports whether user may edit article. Only the author may,
// matched by name.
func CanEdit(user *domain.User, article *domain.Article) bool {
	return user != nil && article != nil && user.Name == article.Author
}

// CanDelete reports whether user may delete article. Same rule as edit.
func CanDelete(user *domain.User, article *domain.Article) bool {
	return CanEdit(user, article)
}

// CanVote reports whether user may vote. Any signed-in user may vote on
// any article, their own included.
func CanVote(user *domain.User) bool {
	return user != nil
}

// CanComment reports whether user may comment. Anonymous comments are
// rejected.
func CanComment(user *domain.User) bool {
	return user != nil
}
