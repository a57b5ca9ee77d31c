package types

// PictureType is the APIC / FLAC PICTURE picture-type code.
type PictureType uint32

// Only the front cover is ever kept; the other codes are listed for dump
// output.
const (
	PictureOther      PictureType = 0
	PictureFileIcon   PictureType = 1
	PictureOtherIcon  PictureType = 2
	PictureFrontCover PictureType = 3
	PictureBackCover  PictureType = 4
	PictureLeaflet    PictureType = 5
	PictureMedia      PictureType = 6
	PictureArtist     PictureType = 8
)

func (p PictureType) String() string {
	switch p {
	case PictureOther:
		return "Other"
	case PictureFileIcon:
		return "File icon"
	case PictureOtherIcon:
		return "Other icon"
	case PictureFrontCover:
		return "Front cover"
	case PictureBackCover:
		return "Back cover"
	case PictureLeaflet:
		return "Leaflet page"
	case PictureMedia:
		return "Media"
	case PictureArtist:
		return "Artist/performer"
	default:
		return "Picture"
	}
}
