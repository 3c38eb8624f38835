//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type ExampleSuite struct {
	suite.Suite
	repoRoot string
}

func (s *ExampleSuite) SetupSuite() {
	if os.Getenv("HANDOFF_TEST_EXAMPLES") == "" {
		s.T().Skip("set HANDOFF_TEST_EXAMPLES=1 to run example integration tests")
	}
	root, err := detectRepoRoot()
	require.NoError(s.T(), err, "locate repository root")
	s.repoRoot = root
}

func (s *ExampleSuite) TestHandoffBasic() {
	output := s.runExample("examples/handoff_basic", nil)
	s.Contains(output, "got 2")
	s.Contains(output, "handed off 1 cell(s)")
}

func (s *ExampleSuite) TestHandoffBasicGoAllocator() {
	output := s.runExample("examples/handoff_basic", []string{
		"HANDOFF_EXAMPLE_ALLOCATOR=go",
		"HANDOFF_EXAMPLE_COUNT=1000",
	})
	s.Equal(1001, strings.Count(output, "got 2\n"))
}

func (s *ExampleSuite) TestAllocatorMismatch() {
	output := s.runExample("examples/allocator_mismatch", nil)
	s.Contains(output, "rejected: ownership: go cell cannot be released by malloc destructor")
	s.Contains(output, "cell now freed")
}

func (s *ExampleSuite) TestHandoffctlMismatchExitsNonZero() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "go", "run", "./cmd/handoffctl", "run", "--allocator", "go", "--destructor", "malloc")
	cmd.Dir = s.repoRoot
	output, err := cmd.CombinedOutput()
	require.Errorf(s.T(), err, "expected non-zero exit:\n%s", string(output))
	s.Contains(string(output), "rejected=1")
}

func (s *ExampleSuite) runExample(relPath string, extraEnv []string) string {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "go", "run", "./"+relPath)
	cmd.Env = append(os.Environ(), extraEnv...)
	cmd.Dir = s.repoRoot

	output, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		s.FailNowf("example timeout", "example %s timed out:\n%s", relPath, string(output))
	}
	require.NoErrorf(s.T(), err, "example %s failed:\n%s", relPath, string(output))
	return string(output)
}

func detectRepoRoot() (string, error) {
	root, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(root, "go.mod")); err == nil {
			return root, nil
		}
		next := filepath.Dir(root)
		if next == root {
			return "", fmt.Errorf("could not locate repository root containing go.mod")
		}
		root = next
	}
}

func TestExamples(t *testing.T) {
	suite.Run(t, new(ExampleSuite))
}
