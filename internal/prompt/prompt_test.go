package prompt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdulachik/inkbloom/internal/remote"
)

type call struct {
	system string
	user   string
}

type fakeGenerator struct {
	replies []string
	errAt   int
	err     error
	calls   []call
}

func (f *fakeGenerator) Complete(_ context.Context, system, user string) (string, error) {
	f.calls = append(f.calls, call{system: system, user: user})
	n := len(f.calls)
	if f.err != nil && n == f.errAt {
		return "", f.err
	}
	return f.replies[n-1], nil
}

func TestSynthesize(t *testing.T) {
	gen := &fakeGenerator{replies: []string{
		"Character: a girl in a red coat\nScene: a snowy wood",
		"The girl walked between the pines as snow fell.",
	}}
	s := NewSynthesizer(gen, Templates{})

	res, err := s.Synthesize(context.Background(), "chapter body", "watercolor")
	require.NoError(t, err)
	require.Len(t, gen.calls, 2)

	assert.Equal(t, DescriptionSystemPrompt, gen.calls[0].system)
	assert.True(t, strings.HasPrefix(gen.calls[0].user, DescriptionPrompt))
	assert.True(t, strings.HasSuffix(gen.calls[0].user, "chapter body"))

	assert.Equal(t, SceneSystemPrompt, gen.calls[1].system)
	assert.True(t, strings.HasPrefix(gen.calls[1].user, ScenePrompt))
	assert.True(t, strings.HasSuffix(gen.calls[1].user, res.Descriptions))

	assert.Equal(t, "The girl walked between the pines as snow fell.", res.Scene)
	assert.Equal(t,
		"generate an image of a scene in a watercolor style, content-policy-safe The girl walked between the pines as snow fell.",
		res.Prompt)
}

func TestSynthesize_EmptyResponsesPassThrough(t *testing.T) {
	gen := &fakeGenerator{replies: []string{"", ""}}
	res, err := NewSynthesizer(gen, Templates{}).Synthesize(context.Background(), "text", "ink")
	require.NoError(t, err)
	assert.Equal(t, "generate an image of a scene in a ink style, content-policy-safe ", res.Prompt)
}

func TestSynthesize_StageErrors(t *testing.T) {
	rateLimited := remote.StatusError("text", 429, "slow down")

	tests := []struct {
		name      string
		errAt     int
		wantStage Stage
		wantCalls int
	}{
		{"descriptions fail", 1, StageDescriptions, 1},
		{"scene selection fails", 2, StageSceneSelection, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{replies: []string{"a", "b"}, errAt: tt.errAt, err: rateLimited}

			res, err := NewSynthesizer(gen, Templates{}).Synthesize(context.Background(), "text", "ink")
			require.Error(t, err)
			assert.Nil(t, res)
			assert.Len(t, gen.calls, tt.wantCalls, "no retries")

			var stageErr *StageError
			require.ErrorAs(t, err, &stageErr)
			assert.Equal(t, tt.wantStage, stageErr.Stage)
			assert.True(t, remote.IsRateLimited(err))
		})
	}
}

func TestSynthesize_ContextCanceled(t *testing.T) {
	gen := &fakeGenerator{replies: []string{"a"}, errAt: 1, err: context.Canceled}
	_, err := NewSynthesizer(gen, Templates{}).Synthesize(context.Background(), "text", "ink")
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "descriptions", StageDescriptions.String())
	assert.Equal(t, "scene selection", StageSceneSelection.String())
	assert.Equal(t, "done", StageDone.String())
	assert.Equal(t, "stage(9)", Stage(9).String())
}

func TestLoadTemplates(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		got, err := LoadTemplates("")
		require.NoError(t, err)
		assert.Equal(t, DefaultTemplates(), got)
	})

	t.Run("partial override keeps defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "prompts.yaml")
		content := "scene: Pick one moment.\nimage_prefix: \"paint a %s picture\"\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		got, err := LoadTemplates(path)
		require.NoError(t, err)
		assert.Equal(t, "Pick one moment.", got.Scene)
		assert.Equal(t, "paint a %s picture", got.ImagePrefix)
		assert.Equal(t, DescriptionSystemPrompt, got.DescriptionSystem)
		assert.Equal(t, DescriptionPrompt, got.Description)

		s := NewSynthesizer(&fakeGenerator{}, got)
		assert.Equal(t, "paint a noir picture x", s.ImagePrompt("noir", "x"))
	})

	t.Run("bad prefix", func(t *testing.T) {
		for _, prefix := range []string{"no verb", "%%s only", "%s %d", "%s and %s", "100% %s"} {
			path := filepath.Join(t.TempDir(), "prompts.yaml")
			require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("image_prefix: %q\n", prefix)), 0o644))

			_, err := LoadTemplates(path)
			require.Error(t, err, prefix)
			assert.Contains(t, err.Error(), "image_prefix", prefix)
		}
	})

	t.Run("escaped percent with one verb", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "prompts.yaml")
		require.NoError(t, os.WriteFile(path, []byte("image_prefix: \"100%% %s\"\n"), 0o644))

		got, err := LoadTemplates(path)
		require.NoError(t, err)
		assert.Equal(t, "100% noir x", NewSynthesizer(&fakeGenerator{}, got).ImagePrompt("noir", "x"))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadTemplates(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "prompts.yaml")
		require.NoError(t, os.WriteFile(path, []byte("scene: [unclosed\n"), 0o644))
		_, err := LoadTemplates(path)
		assert.Error(t, err)
	})
}
