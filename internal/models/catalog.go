package models

// BookDetails is the response of GET /books/{id}/details
type BookDetails struct {
	ID            int    `json:"bookId" validate:"required,gt=0"`
	Name          string `json:"name"`
	Authors       string `json:"authors,omitempty"`
	Genres        string `json:"genres,omitempty"`
	Publisher     string `json:"publisher,omitempty"`
	PublishedDate string `json:"publishedDate,omitempty"`
	Language      string `json:"language,omitempty"`
	Format        Format `json:"format,omitempty" validate:"omitempty,oneof=PDF EPUB"`
}

// Upload is one element of GET /books/my-uploads
type Upload struct {
	ID            int    `json:"bookId" validate:"required,gt=0"`
	Title         string `json:"title"`
	Authors       string `json:"authors,omitempty"`
	Publisher     string `json:"publisher,omitempty"`
	Genres        string `json:"genres,omitempty"`
	PublishedDate string `json:"publishedDate,omitempty"`
	Language      string `json:"language,omitempty"`
	Format        Format `json:"format,omitempty" validate:"omitempty,oneof=PDF EPUB"`
}

// UploadRequest describes a document sent as multipart POST /books. Data is
// the raw file; its type is sniffed before sending.
type UploadRequest struct {
	Title         string `validate:"required"`
	Author        string
	Publisher     string
	PublishedDate string
	Language      string
	GenreIDs      []int  `validate:"omitempty,dive,gt=0"`
	Filename      string `validate:"required"`
	Data          []byte `validate:"required,min=1"`
}

// BookUpdate is the body of PUT /books/{id}
type BookUpdate struct {
	Name     string `json:"name" validate:"required"`
	Language string `json:"language,omitempty"`
	Format   Format `json:"format" validate:"required,oneof=PDF EPUB"`
}

// Collection is one element of GET /collections and the response of
// POST /collections. BookCount is only set by the listing.
type Collection struct {
	ID          int    `json:"collectionId" validate:"required,gt=0"`
	Name        string `json:"collectionName" validate:"required"`
	CreatedDate string `json:"createdDate,omitempty"`
	UserID      int    `json:"userId,omitempty"`
	BookCount   int    `json:"bookCount" validate:"min=0"`
}

// CollectionRequest is the body of POST /collections
type CollectionRequest struct {
	Name string `json:"collectionName" validate:"required"`
}

// RegisterRequest is the body of POST /auth/register
type RegisterRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RegisterResponse is the response of POST /auth/register. The backend does
// not log the new account in, so Token is normally empty.
type RegisterResponse struct {
	Token    string `json:"token,omitempty"`
	UserID   int    `json:"userId" validate:"required,gt=0"`
	Username string `json:"username" validate:"required"`
}
