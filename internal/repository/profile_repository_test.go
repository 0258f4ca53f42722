package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/miskyy7507/vibezone/internal/models"
)

func keys(d bson.D) []string {
	out := make([]string, 0, len(d))
	for _, e := range d {
		out = append(out, e.Key)
	}
	return out
}

func TestProfileUpdateDocument(t *testing.T) {
	doc := profileUpdateDocument(models.ProfileUpdate{
		DisplayName: models.Set("Alice"),
		AboutDesc:   models.Unset[string](),
	})

	require.Len(t, doc, 2)
	assert.Equal(t, "$set", doc[0].Key)
	set := doc[0].Value.(bson.D)
	assert.Equal(t, []string{"updatedAt", "displayName"}, keys(set))
	assert.Equal(t, "Alice", set[1].Value)

	assert.Equal(t, "$unset", doc[1].Key)
	assert.Equal(t, []string{"aboutDesc"}, keys(doc[1].Value.(bson.D)))
}

func TestProfileUpdateDocumentLeavesAbsentFields(t *testing.T) {
	doc := profileUpdateDocument(models.ProfileUpdate{ProfilePictureURI: models.Set("image-ab.png")})

	require.Len(t, doc, 1)
	assert.Equal(t, []string{"updatedAt", "profilePictureUri"}, keys(doc[0].Value.(bson.D)))
}
