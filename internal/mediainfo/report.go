package mediainfo

import (
	"context"
	"fmt"

	"github.com/jmylchreest/compressr/internal/ffmpeg"
	"github.com/jmylchreest/compressr/internal/util"
)

// node is one paste-host content element. Children mix nested nodes and
// plain strings, matching the API's page format.
type node struct {
	Tag      string `json:"tag"`
	Children []any  `json:"children,omitempty"`
}

// Report renders one file's probe result as page content: a General
// section plus Video and Audio sections when streams are present.
func Report(filename string, size int64, info *ffmpeg.MediaInfo) []any {
	general := []string{
		"Complete name: " + filename,
	}
	if info.FormatName != "" {
		general = append(general, "Format: "+info.FormatName)
	}
	if size > 0 {
		general = append(general, "File size: "+util.HumanBytes(size))
	}
	if info.DurationSeconds > 0 {
		general = append(general, "Duration: "+util.HumanDurationMS(int64(info.DurationSeconds*1000)))
	}
	if info.BitRate > 0 {
		general = append(general, fmt.Sprintf("Overall bit rate: %d kb/s", info.BitRate/1000))
	}

	content := []any{
		node{Tag: "h4", Children: []any{"General"}},
		paragraph(general),
	}

	var video []string
	if info.VideoCodec != "" {
		video = append(video, "Codec: "+info.VideoCodec)
	}
	if info.Width > 0 && info.Height > 0 {
		video = append(video, "Resolution: "+info.Resolution())
	}
	if info.FPS > 0 {
		video = append(video, fmt.Sprintf("Frame rate: %.3f fps", info.FPS))
	}
	if len(video) > 0 {
		content = append(content,
			node{Tag: "h4", Children: []any{"Video"}},
			paragraph(video),
		)
	}

	if info.AudioCodec != "" {
		content = append(content,
			node{Tag: "h4", Children: []any{"Audio"}},
			paragraph([]string{"Codec: " + info.AudioCodec}),
		)
	}

	return content
}

// paragraph joins lines into one <p> with <br> separators.
func paragraph(lines []string) node {
	children := make([]any, 0, len(lines)*2)
	for i, line := range lines {
		if i > 0 {
			children = append(children, node{Tag: "br"})
		}
		children = append(children, line)
	}
	return node{Tag: "p", Children: children}
}

// PublishReport renders the given probe result and posts it, returning the
// page URL.
func (p *Publisher) PublishReport(ctx context.Context, filename string, size int64, info *ffmpeg.MediaInfo) (string, error) {
	return p.Publish(ctx, "MediaInfo", Report(filename, size, info))
}
