package decode

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ind4skylivey/lockb-xray/internal/cursor"
	"github.com/ind4skylivey/lockb-xray/internal/lockfile"
)

// Resolution tags. Values mirror the discriminant bun itself uses for its
// lockfile Resolution union.
const (
	resolutionTagUninitialized uint8 = 0
	resolutionTagRoot          uint8 = 1
	resolutionTagNpm           uint8 = 2
	resolutionTagFolder        uint8 = 4
	resolutionTagLocalTarball  uint8 = 8
	resolutionTagGithub        uint8 = 16
	resolutionTagGit           uint8 = 32
	resolutionTagSymlink       uint8 = 64
	resolutionTagWorkspace     uint8 = 72
	resolutionTagRemoteTarball uint8 = 80
	resolutionTagSingleFile    uint8 = 100
)

// resolutionSlotStride is the fixed byte width of one resolution column row:
// a 1-byte tag, 3 bytes of padding to the next 4-byte boundary, and three
// external string refs (8 bytes each) holding whichever of tarball URL,
// committish, owner/repo/commit, or path the tag calls for. Unused refs are
// zero (offset=0, length=0), which resolve to the empty string.
const resolutionSlotStride = 1 + 3 + 3*8

// decodeResolution reads one fixed-width resolution slot and resolves its
// string refs against stringBytes. The returned warning is non-empty only
// when tag falls outside the known set (UnknownResolutionTag(n)).
func decodeResolution(c *cursor.Cursor, stringBytes []byte) (lockfile.Resolution, string, error) {
	tag, err := c.ReadU8()
	if err != nil {
		return lockfile.Resolution{}, "", wrapShortRead("resolution tag", err)
	}
	if _, err := c.ReadBytes(3); err != nil {
		return lockfile.Resolution{}, "", wrapShortRead("resolution tag padding", err)
	}

	var refs [3]externalStringRef
	for i := range refs {
		refs[i], err = readExternalStringRef(c)
		if err != nil {
			return lockfile.Resolution{}, "", wrapShortRead("resolution string ref", err)
		}
	}

	str := func(i int) (string, error) { return refs[i].resolve(stringBytes) }

	switch tag {
	case resolutionTagUninitialized, resolutionTagRoot:
		return lockfile.Resolution{Kind: lockfile.ResolutionRoot}, "", nil

	case resolutionTagNpm:
		host, err := str(0)
		if err != nil {
			return lockfile.Resolution{}, "", wrapShortRead("npm registry host", err)
		}
		tarball, err := str(1)
		if err != nil {
			return lockfile.Resolution{}, "", wrapShortRead("npm tarball url", err)
		}
		if host == "" {
			host = deriveRegistryHost(tarball)
		}
		return lockfile.Resolution{Kind: lockfile.ResolutionNpm, RegistryHost: host, TarballURL: tarball}, "", nil

	case resolutionTagFolder:
		path, err := str(0)
		if err != nil {
			return lockfile.Resolution{}, "", wrapShortRead("folder path", err)
		}
		return lockfile.Resolution{Kind: lockfile.ResolutionFile, Path: path}, "", nil

	case resolutionTagLocalTarball:
		path, err := str(0)
		if err != nil {
			return lockfile.Resolution{}, "", wrapShortRead("local tarball path", err)
		}
		return lockfile.Resolution{Kind: lockfile.ResolutionLocalTarball, Path: path}, "", nil

	case resolutionTagRemoteTarball:
		url, err := str(0)
		if err != nil {
			return lockfile.Resolution{}, "", wrapShortRead("remote tarball url", err)
		}
		return lockfile.Resolution{Kind: lockfile.ResolutionTarball, URL: url, TarballURL: url}, "", nil

	case resolutionTagGithub:
		owner, err := str(0)
		if err != nil {
			return lockfile.Resolution{}, "", wrapShortRead("github owner", err)
		}
		repo, err := str(1)
		if err != nil {
			return lockfile.Resolution{}, "", wrapShortRead("github repo", err)
		}
		commit, err := str(2)
		if err != nil {
			return lockfile.Resolution{}, "", wrapShortRead("github commit", err)
		}
		return lockfile.Resolution{
			Kind:   lockfile.ResolutionGithub,
			Owner:  owner,
			Repo:   repo,
			Commit: commit,
			URL:    fmt.Sprintf("github:%s/%s#%s", owner, repo, commit),
		}, "", nil

	case resolutionTagGit:
		url, err := str(0)
		if err != nil {
			return lockfile.Resolution{}, "", wrapShortRead("git url", err)
		}
		committish, err := str(1)
		if err != nil {
			return lockfile.Resolution{}, "", wrapShortRead("git committish", err)
		}
		return lockfile.Resolution{Kind: lockfile.ResolutionGit, URL: url, Committish: committish}, "", nil

	case resolutionTagSymlink:
		path, err := str(0)
		if err != nil {
			return lockfile.Resolution{}, "", wrapShortRead("symlink path", err)
		}
		return lockfile.Resolution{Kind: lockfile.ResolutionSymlink, Path: path}, "", nil

	case resolutionTagWorkspace:
		path, err := str(0)
		if err != nil {
			return lockfile.Resolution{}, "", wrapShortRead("workspace path", err)
		}
		return lockfile.Resolution{Kind: lockfile.ResolutionWorkspace, WorkspacePath: path, Path: path}, "", nil

	case resolutionTagSingleFile:
		url, err := str(0)
		if err != nil {
			return lockfile.Resolution{}, "", wrapShortRead("single file url", err)
		}
		return lockfile.Resolution{Kind: lockfile.ResolutionSingleFile, URL: url, TarballURL: url}, "", nil

	default:
		warning := fmt.Sprintf("UnknownResolutionTag(%d)", tag)
		return lockfile.Resolution{Kind: lockfile.ResolutionUnknown, RawTag: tag}, warning, nil
	}
}

// deriveRegistryHost reconstructs the registry host from an npm resolution's
// tarball URL when the lockfile has no host stored directly for that slot,
// defaulting to npmjs.org when the URL is empty or unparseable.
func deriveRegistryHost(tarballURL string) string {
	if tarballURL == "" {
		return "npmjs.org"
	}
	u, err := url.Parse(tarballURL)
	if err != nil || u.Host == "" {
		return "npmjs.org"
	}
	return strings.ToLower(u.Host)
}
