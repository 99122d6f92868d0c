// Package release contains the core types of the self-upgrade flow.
//
// It defines Info (a published release), Target (the platform the running
// binary was built for, with its target triple), Manifest (the parsed
// checksums.txt of a release) and DownloadedArtifact (files fetched for one
// upgrade run). Everything here is pure; network and filesystem work lives in
// the registry repository and the upgrader service.
package release
