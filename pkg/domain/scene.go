package domain

// Shot はシーン内の1カメラユニットです。
// ShotNumber はシーン内の「位置」キーであり、恒久的なIDではありません。
// 挿入やリナンバリングで値が変わります。
type Shot struct {
	ShotNumber       int      `json:"shot_number"`
	ShotDescription  string   `json:"shot_description"`
	CharactersInShot []string `json:"characters_in_shot"`
}

// Scene は番号付きの物語の区切りで、画面順に並んだショット列を保持します。
// SceneNumber はセッション内で一意の安定キーです（連番である保証はなく、
// 自動的にリナンバリングされることもありません）。
type Scene struct {
	SceneNumber int    `json:"scene_number"`
	SceneTitle  string `json:"scene_title"`
	Shots       []Shot `json:"shots"`
}

// FindShot はショット番号が一致するショットのインデックスを返します。
// 見つからない場合は -1 です。
func (s *Scene) FindShot(shotNumber int) int {
	for i, shot := range s.Shots {
		if shot.ShotNumber == shotNumber {
			return i
		}
	}
	return -1
}
