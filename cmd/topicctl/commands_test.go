package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"topicgraph/application/services"
	"topicgraph/domain/config"
	"topicgraph/infrastructure/persistence/memory"
	pkgerrors "topicgraph/pkg/errors"
)

const seedYAML = `
contentTypes:
  - name: Page
    attributes:
      - key: title
        inherited: true
      - key: body
        default: "(none)"
topics:
  - key: site
    contentType: Container
`

type session struct {
	repo *services.TopicRepository
}

func newSession(t *testing.T) *session {
	t.Helper()
	logger := zaptest.NewLogger(t)
	repo := services.NewTopicRepository(memory.NewTopicStore(logger), nil, config.DefaultDomainConfig(), logger)
	require.NoError(t, repo.Open(context.Background()))
	return &session{repo: repo}
}

func (s *session) run(args ...string) (string, error) {
	cmd := newRootCmd(func(context.Context) (*services.TopicRepository, func(), error) {
		return s.repo, func() {}, nil
	})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (s *session) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := s.run(args...)
	require.NoError(t, err, "topicctl %s", strings.Join(args, " "))
	return out
}

func TestTopicctlWorkflow(t *testing.T) {
	s := newSession(t)
	seedFile := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(seedFile, []byte(seedYAML), 0o600))

	assert.Contains(t, s.mustRun(t, "seed", seedFile), "applied")
	assert.Contains(t, s.mustRun(t, "create", "root:site", "Page", "home", "title=Home"), "created root:site:home")
	s.mustRun(t, "create", "root:site:home", "Page", "about")

	t.Run("resolved attributes", func(t *testing.T) {
		out := s.mustRun(t, "get", "root:site:home:about", "--resolve")
		assert.Contains(t, out, "title = Home")
		assert.Contains(t, out, "body = (none)")

		out = s.mustRun(t, "get", "root:site:home:about")
		assert.NotContains(t, out, "title")
	})

	t.Run("set, history and rollback", func(t *testing.T) {
		s.mustRun(t, "set", "root:site:home", "title=Start")
		assert.Contains(t, s.mustRun(t, "get", "root:site:home"), "title = Start")

		history := strings.Fields(s.mustRun(t, "history", "root:site:home"))
		require.Len(t, history, 2)
		oldest := history[1]

		assert.Contains(t, s.mustRun(t, "history", "root:site:home", "--at", oldest), "title = Home")

		s.mustRun(t, "rollback", "root:site:home", oldest)
		assert.Contains(t, s.mustRun(t, "get", "root:site:home"), "title = Home")
		assert.Len(t, strings.Fields(s.mustRun(t, "history", "root:site:home")), 3)

		_, err := s.run("set", "root:site:home", "title")
		assert.Error(t, err)
	})

	t.Run("tree", func(t *testing.T) {
		out := s.mustRun(t, "tree", "root:site")
		assert.Equal(t, "site (Container)\n  home (Page)\n    about (Page)\n", out)
	})

	t.Run("delete needs recursion or an empty subtree", func(t *testing.T) {
		_, err := s.run("delete", "root:site:home")
		assert.True(t, pkgerrors.IsHasDescendants(err))

		s.mustRun(t, "move", "root:site:home:about", "root:site", "--after", "home")
		assert.Equal(t, "site (Container)\n  home (Page)\n  about (Page)\n", s.mustRun(t, "tree", "root:site"))

		s.mustRun(t, "delete", "root:site:home")
		_, err = s.run("get", "root:site:home")
		assert.True(t, pkgerrors.IsNotFound(err))
	})

	t.Run("argument errors", func(t *testing.T) {
		_, err := s.run("get")
		assert.Error(t, err)
		_, err = s.run("rollback", "root:site:about", "yesterday")
		assert.Error(t, err)
		_, err = s.run("move", "root:site:about", "root:site", "--after", "nope")
		assert.Error(t, err)
	})
}
